package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"crewpair/internal/duty"
	"crewpair/internal/qual"
	"crewpair/internal/storage"
)

// runListen subscribes to a NATS subject carrying duty feed lines and
// stores the parsed records in the PostgreSQL state store. Each message
// payload is a chunk of feed text; lines that fail to parse are counted
// and dropped, the stream keeps going.
func runListen(args []string) {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	natsURL := fs.String("nats", envOrDefault("NATS_URL", nats.DefaultURL), "NATS server URL")
	subject := fs.String("subject", envOrDefault("NATS_SUBJECT", "crew.duty"), "NATS subject to subscribe to")
	queue := fs.String("queue", "", "NATS queue group (optional)")
	schemeName := fs.String("scheme", "binary", "Duty code scheme: binary or span")
	qualPath := fs.String("qual", "", "Qualification roster XML to sync into the pilots table on startup")
	retainDays := fs.Int("retain", 0, "Purge duty records older than this many days on startup (0 = keep all)")

	pgHost := fs.String("pg-host", envOrDefault("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	pgPort := fs.Int("pg-port", envOrDefaultInt("POSTGRES_PORT", 5432), "PostgreSQL port")
	pgUser := fs.String("pg-user", envOrDefault("POSTGRES_USER", "crewpair"), "PostgreSQL user")
	pgPassword := fs.String("pg-password", envOrDefault("POSTGRES_PASSWORD", "crewpair"), "PostgreSQL password")
	pgDB := fs.String("pg-database", envOrDefault("POSTGRES_DATABASE", "crewpair_state"), "PostgreSQL database")
	_ = fs.Parse(args)

	scheme, err := duty.ParseScheme(*schemeName)
	if err != nil {
		fatalf("listen: %v", err)
	}

	ctx := context.Background()
	pg, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
		Host:     *pgHost,
		Port:     *pgPort,
		Database: *pgDB,
		User:     *pgUser,
		Password: *pgPassword,
	})
	if err != nil {
		fatalf("listen: postgres: %v", err)
	}
	defer pg.Close()

	if err := pg.CreateSchema(ctx); err != nil {
		fatalf("listen: postgres schema: %v", err)
	}

	if *retainDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -*retainDays)
		purged, err := pg.PurgeDutyBefore(ctx, cutoff)
		if err != nil {
			fatalf("listen: purge duty records: %v", err)
		}
		if purged > 0 {
			log.Printf("Purged %d duty records before %s", purged, cutoff.Format("2006-01-02"))
		}
	}

	// Seed the pilots table so merged queries have seats to join against.
	if *qualPath != "" {
		f, err := os.Open(*qualPath)
		if err != nil {
			fatalf("listen: open qualification roster: %v", err)
		}
		pilots, err := qual.Load(f)
		_ = f.Close()
		if err != nil {
			fatalf("listen: load qualification roster: %v", err)
		}
		for _, p := range pilots {
			if err := pg.UpsertPilot(ctx, p); err != nil {
				fatalf("listen: sync pilot %s: %v", p.EmployeeID, err)
			}
		}
		log.Printf("Synced %d pilots into the state store", len(pilots))
	}

	nc, err := nats.Connect(*natsURL,
		nats.Name("crewpair-listen"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		fatalf("listen: nats connect: %v", err)
	}
	defer nc.Close()

	handler := func(msg *nats.Msg) {
		parser := duty.NewParser(scheme)
		records, err := parser.ParseFeed(strings.NewReader(string(msg.Data)))
		if err != nil {
			log.Printf("parse feed chunk: %v", err)
			return
		}
		if parser.Skipped > 0 {
			log.Printf("skipped %d malformed lines in feed chunk", parser.Skipped)
		}
		if len(records) == 0 {
			return
		}
		if err := pg.InsertDutyRecords(ctx, records); err != nil {
			log.Printf("store duty records: %v", err)
			return
		}
		log.Printf("stored %d duty records from %s", len(records), msg.Subject)
	}

	var sub *nats.Subscription
	if *queue != "" {
		sub, err = nc.QueueSubscribe(*subject, *queue, handler)
	} else {
		sub, err = nc.Subscribe(*subject, handler)
	}
	if err != nil {
		fatalf("listen: subscribe: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	fmt.Fprintf(os.Stderr, "Listening on %s (scheme=%s), Ctrl-C to stop\n", *subject, scheme)
	waitForSignal()

	if err := nc.Drain(); err != nil {
		log.Printf("NATS drain: %v", err)
	}
}
