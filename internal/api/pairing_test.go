package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"crewpair/internal/pairing"
	"crewpair/internal/storage"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(nil, Config{Port: 8081})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	server := NewServer(nil, Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})
	router := server.Router()

	tests := []struct {
		name       string
		apiKey     string
		keyHeader  string
		wantStatus int
	}{
		{
			name:       "no key",
			apiKey:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid key",
			apiKey:     "wrong-key",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid key via X-API-Key",
			apiKey:     "test-key-123",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid key via Bearer",
			apiKey:     "another-key",
			keyHeader:  "Authorization",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.apiKey != "" {
				if tt.keyHeader == "Authorization" {
					req.Header.Set("Authorization", "Bearer "+tt.apiKey)
				} else {
					req.Header.Set(tt.keyHeader, tt.apiKey)
				}
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestAuthMiddlewareQueryParam(t *testing.T) {
	server := NewServer(nil, Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"query-key"},
	})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/health?api_key=query-key", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestPairingsRequestValidation(t *testing.T) {
	server := NewServer(nil, Config{Port: 8081})
	router := chi.NewRouter()
	router.Post("/pairings", server.handlePairings)

	// Validation runs before any database access, so these requests must
	// fail fast without a store behind the server.
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "empty body",
			body:       "",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing range",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad date format",
			body:       `{"from": "01-04-2024", "to": "2024-04-05"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "reversed range",
			body:       `{"from": "2024-04-05", "to": "2024-04-01"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed restrictions csv",
			body:       `{"from": "2024-04-01", "to": "2024-04-05", "restrictions_csv": "nope\nJD"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/pairings", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err == nil {
				if resp["error"] == "" {
					t.Error("expected an error message in the response")
				}
			}
		})
	}
}

func TestSummaryRequestValidation(t *testing.T) {
	server := NewServer(nil, Config{Port: 8081})
	router := chi.NewRouter()
	router.Post("/summary", server.handleSummary)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "missing range",
			body:       `{"code": "A"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad date",
			body:       `{"from": "2024-13-99", "to": "2024-04-05"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown duty code",
			body:       `{"from": "2024-04-01", "to": "2024-04-05", "code": "X"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/summary", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPairToResponse(t *testing.T) {
	known := pairToResponse(pairing.Candidate{
		PIC:         "John Doe",
		SIC:         "E456",
		PICBase:     "CYYC",
		SICBase:     "CYEG",
		Aircraft:    "CJ3",
		DistanceKM:  245.999031,
		OverlapDays: 4,
	})
	if known.DistanceKM == nil || *known.DistanceKM != 246.0 {
		t.Errorf("DistanceKM = %v, want 246.0", known.DistanceKM)
	}
	if known.OverlapDays != 4 {
		t.Errorf("OverlapDays = %d, want 4", known.OverlapDays)
	}

	unknown := pairToResponse(pairing.Candidate{
		PIC:        "John Doe",
		SIC:        "E789",
		DistanceKM: math.Inf(1),
	})
	if unknown.DistanceKM != nil {
		t.Errorf("unknown-base DistanceKM = %v, want nil (renders as null)", unknown.DistanceKM)
	}
}

func TestRunsEndpoints(t *testing.T) {
	archive, err := storage.OpenArchive(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer func() { _ = archive.Close() }()

	runID, err := archive.SaveRun(storage.SaveRunParams{
		Kind:       "pair",
		Scheme:     "span",
		PilotCount: 3,
		DutyCount:  9,
		Valid: []pairing.Candidate{
			{PIC: "John Doe", SIC: "E456", Aircraft: "CJ3", DistanceKM: 0, OverlapDays: 2},
		},
	})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	server := NewServer(nil, Config{Port: 8081}).WithArchive(archive)
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /runs status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var runs []RunResponse
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Kind != "pair" || runs[0].PilotCount != 3 {
		t.Errorf("runs = %+v, want one pair run with 3 pilots", runs)
	}

	req = httptest.NewRequest(http.MethodGet, "/runs/"+strconv.FormatInt(runID, 10)+"/pairs", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /runs/{id}/pairs status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var pairs []StoredPairResponse
	if err := json.NewDecoder(rec.Body).Decode(&pairs); err != nil {
		t.Fatalf("decode pairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].SIC != "E456" || pairs[0].Restricted {
		t.Errorf("pairs = %+v, want one valid pair with SIC E456", pairs)
	}
}

func TestRunsEndpoints_NoArchive(t *testing.T) {
	server := NewServer(nil, Config{Port: 8081})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /runs without archive status = %d, want 404", rec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for OPTIONS, got %d", rec.Code)
	}

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS Allow-Origin header")
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected CORS Allow-Methods header")
	}
}
