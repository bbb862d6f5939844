// Package api provides REST API endpoints for crew pairing queries.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"crewpair/internal/pairing"
	"crewpair/internal/restrictions"
	"crewpair/internal/roster"
	"crewpair/internal/storage"
	"crewpair/internal/summary"
)

// Server provides REST API access to the crew state store and the
// pairing engine.
type Server struct {
	pg          *storage.PostgresDB
	archive     *storage.Archive // Optional local run archive.
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the pairing API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewServer creates a new pairing API server.
func NewServer(pg *storage.PostgresDB, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		pg:          pg,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// WithArchive attaches a local run archive, enabling the /runs endpoints.
func (s *Server) WithArchive(a *storage.Archive) *Server {
	s.archive = a
	return s
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", s.Router())
	})

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Pairing API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/pilots/{employee_id}", s.handleGetPilot)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{run_id}/pairs", s.handleRunPairs)
	r.Post("/pairings", s.handlePairings)
	r.Post("/summary", s.handleSummary)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// PilotResponse is the JSON view of one rostered pilot.
type PilotResponse struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name,omitempty"`
	Seat       string `json:"seat"`
	Base       string `json:"base,omitempty"`
	Aircraft   string `json:"aircraft,omitempty"`
}

func (s *Server) handleGetPilot(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employee_id")
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required")
		return
	}

	p, err := s.pg.GetPilot(r.Context(), employeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "No pilot found")
		return
	}

	writeJSON(w, http.StatusOK, PilotResponse{
		EmployeeID: p.EmployeeID,
		Name:       p.Name,
		Seat:       p.Seat,
		Base:       p.Base,
		Aircraft:   p.Aircraft,
	})
}

// RunResponse is the JSON view of one archived run.
type RunResponse struct {
	ID           int64    `json:"id"`
	CreatedAt    string   `json:"created_at,omitempty"`
	Kind         string   `json:"kind"`
	Scheme       string   `json:"scheme"`
	PilotCount   int      `json:"pilot_count"`
	DutyCount    int      `json:"duty_count"`
	SkippedLines int      `json:"skipped_lines"`
	UnknownBases []string `json:"unknown_bases,omitempty"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "Run archive not configured")
		return
	}

	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.archive.Runs(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		rr := RunResponse{
			ID:           run.ID,
			Kind:         run.Kind,
			Scheme:       run.Scheme,
			PilotCount:   run.PilotCount,
			DutyCount:    run.DutyCount,
			SkippedLines: run.SkippedLines,
			UnknownBases: run.UnknownBases,
		}
		if !run.CreatedAt.IsZero() {
			rr.CreatedAt = run.CreatedAt.UTC().Format(time.RFC3339)
		}
		resp = append(resp, rr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// StoredPairResponse is the JSON view of one archived pair.
type StoredPairResponse struct {
	PIC         string   `json:"pic"`
	SIC         string   `json:"sic"`
	PICBase     string   `json:"pic_base,omitempty"`
	SICBase     string   `json:"sic_base,omitempty"`
	Aircraft    string   `json:"aircraft,omitempty"`
	DistanceKM  *float64 `json:"distance_km"`
	OverlapDays int      `json:"overlap_days"`
	Restricted  bool     `json:"restricted"`
}

func (s *Server) handleRunPairs(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "Run archive not configured")
		return
	}

	runID, err := strconv.ParseInt(chi.URLParam(r, "run_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid run id")
		return
	}

	pairs, err := s.archive.RunPairs(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]StoredPairResponse, 0, len(pairs))
	for _, p := range pairs {
		resp = append(resp, StoredPairResponse{
			PIC:         p.PIC,
			SIC:         p.SIC,
			PICBase:     p.PICBase,
			SICBase:     p.SICBase,
			Aircraft:    p.Aircraft,
			DistanceKM:  p.DistanceKM,
			OverlapDays: p.OverlapDays,
			Restricted:  p.Restricted,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// PairingsRequest selects the duty window to pair over. RestrictionsCSV
// optionally carries a crewing restriction report to filter against.
type PairingsRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	RestrictionsCSV string `json:"restrictions_csv,omitempty"`
}

// PairResponse is the JSON view of one candidate pair. DistanceKM is null
// when either base is unknown.
type PairResponse struct {
	PIC         string   `json:"pic"`
	SIC         string   `json:"sic"`
	PICBase     string   `json:"pic_base,omitempty"`
	SICBase     string   `json:"sic_base,omitempty"`
	Aircraft    string   `json:"aircraft,omitempty"`
	DistanceKM  *float64 `json:"distance_km"`
	OverlapDays int      `json:"overlap_days"`
}

// PairingsResponse carries both partitions of the generated pairs.
type PairingsResponse struct {
	Valid        []PairResponse `json:"valid"`
	Restricted   []PairResponse `json:"restricted"`
	UnknownBases []string       `json:"unknown_bases,omitempty"`
}

func pairToResponse(c pairing.Candidate) PairResponse {
	resp := PairResponse{
		PIC:         c.PIC,
		SIC:         c.SIC,
		PICBase:     c.PICBase,
		SICBase:     c.SICBase,
		Aircraft:    c.Aircraft,
		OverlapDays: c.OverlapDays,
	}
	if km, ok := c.RoundedDistanceKM(); ok {
		resp.DistanceKM = &km
	}
	return resp
}

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	f, err := time.Parse("2006-01-02", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := time.Parse("2006-01-02", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return f, t, nil
}

func (s *Server) handlePairings(w http.ResponseWriter, r *http.Request) {
	var req PairingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	from, to, err := parseDateRange(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	var res restrictions.Map
	if req.RestrictionsCSV != "" {
		rows, err := restrictions.ParseCSV(strings.NewReader(req.RestrictionsCSV))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid restrictions CSV: "+err.Error())
			return
		}
		res = restrictions.Build(rows)
	}

	records, err := s.pg.MergedRecords(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := pairing.Generate(records, res)

	resp := PairingsResponse{
		Valid:        make([]PairResponse, 0, len(result.Valid)),
		Restricted:   make([]PairResponse, 0, len(result.Restricted)),
		UnknownBases: result.UnknownBases.Codes(),
	}
	for _, c := range result.Valid {
		resp.Valid = append(resp.Valid, pairToResponse(c))
	}
	for _, c := range result.Restricted {
		resp.Restricted = append(resp.Restricted, pairToResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SummaryRequest selects the duty code and window to summarize.
type SummaryRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Code string `json:"code,omitempty"` // Defaults to "A".
}

// SummaryResponse is the JSON view of a daily summary table.
type SummaryResponse struct {
	Columns []string         `json:"columns"`
	Rows    []SummaryRowJSON `json:"rows"`
}

// SummaryRowJSON is one date of the summary, counts aligned with Columns.
type SummaryRowJSON struct {
	Date   string `json:"date"`
	Counts []int  `json:"counts"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	from, to, err := parseDateRange(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)")
		return
	}

	code := roster.DutyAvailable
	if req.Code != "" {
		c, ok := roster.ParseDutyCode(req.Code)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown duty code: "+req.Code)
			return
		}
		code = c
	}

	records, err := s.pg.MergedRecords(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	table, err := summary.Daily(records, code, from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := SummaryResponse{Columns: table.Columns, Rows: make([]SummaryRowJSON, 0, len(table.Rows))}
	for _, row := range table.Rows {
		resp.Rows = append(resp.Rows, SummaryRowJSON{
			Date:   row.Date.Format("2006-01-02"),
			Counts: row.Counts,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
