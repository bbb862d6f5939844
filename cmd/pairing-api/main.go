// Package main provides the pairing-api server for crew pairing queries.
//
// This is a standalone REST API server over the PostgreSQL crew state
// store. Rostering tools post a date range and get back ranked PIC/SIC
// candidate pairs or a daily availability summary computed from the
// stored duty feed.
//
// Usage:
//
//	pairing-api [options]
//
// Options:
//
//	-pg-host HOST       PostgreSQL host (default: localhost, env: POSTGRES_HOST)
//	-pg-port PORT       PostgreSQL port (default: 5432, env: POSTGRES_PORT)
//	-pg-database DB     PostgreSQL database (default: crewpair_state, env: POSTGRES_DATABASE)
//	-pg-user USER       PostgreSQL user (default: crewpair, env: POSTGRES_USER)
//	-pg-password PASS   PostgreSQL password (default: crewpair, env: POSTGRES_PASSWORD)
//	-port N             HTTP port (default: 8081)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	GET /api/v1/pilots/{employee_id}
//	    Get one rostered pilot's qualification record.
//
//	GET /api/v1/runs
//	    List archived runs (requires -archive).
//
//	GET /api/v1/runs/{run_id}/pairs
//	    Get one archived run's ranked pairs (requires -archive).
//
//	POST /api/v1/pairings
//	    Generate candidate pairs over a date range.
//	    Body: {"from": "YYYY-MM-DD", "to": "YYYY-MM-DD", "restrictions_csv": "..."}
//
//	POST /api/v1/summary
//	    Daily availability summary over a date range.
//	    Body: {"from": "YYYY-MM-DD", "to": "YYYY-MM-DD", "code": "A"}
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"crewpair/internal/api"
	"crewpair/internal/storage"
)

func main() {
	_ = godotenv.Load()

	// PostgreSQL connection flags.
	pgHost := flag.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := flag.String("pg-user", envOrDefault("POSTGRES_USER", "crewpair"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "crewpair"), "PostgreSQL password")
	pgDB := flag.String("pg-database", envOrDefault("POSTGRES_DATABASE", "crewpair_state"), "PostgreSQL database")

	// API server flags.
	port := flag.Int("port", 8081, "HTTP port for API server")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")
	archivePath := flag.String("archive", "", "SQLite run archive to expose via /runs (optional)")

	flag.Parse()

	ctx := context.Background()

	// Open PostgreSQL database.
	pg, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
		Host:     *pgHost,
		Port:     *pgPort,
		Database: *pgDB,
		User:     *pgUser,
		Password: *pgPassword,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.CreateSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating schema: %v\n", err)
		os.Exit(1)
	}

	// Parse API keys.
	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	// Create and run server.
	server := api.NewServer(pg, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
	})

	if *archivePath != "" {
		archive, err := storage.OpenArchive(*archivePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening run archive: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = archive.Close() }()
		server.WithArchive(archive)
	}

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
