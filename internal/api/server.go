// Package api provides the HTTP API for the map editor and the LOS tester.
// GET endpoints are public (read-only).
// PUT /api/v1/map/data requires a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/lob-los/internal/hexgrid"
	"github.com/talgya/lob-los/internal/los"
	"github.com/talgya/lob-los/internal/mapdoc"
	"github.com/talgya/lob-los/internal/persistence"
)

const (
	maxMapBytes      = 16 << 20
	revisionPageSize = 20
)

// Server serves the current map and LOS checks over HTTP.
type Server struct {
	Store    *persistence.DB
	Scenario string
	Port     int
	AdminKey string      // Bearer token for PUT. Empty = editing disabled.
	Options  *los.Options // /los defaults; nil means los.DefaultOptions

	// LOS requests per client per minute. 0 = DefaultLOSRate.
	LOSRate int

	// Current map snapshot. Saves swap the pointer; documents are never
	// mutated in place, so handlers can evaluate without holding the lock.
	mu      sync.RWMutex
	current *mapdoc.Document
	rev     persistence.Revision

	once    sync.Once
	handler http.Handler
}

// DefaultLOSRate is the per-client LOS request budget per minute.
const DefaultLOSRate = 600

// LoadCurrent reads the newest stored revision of the scenario into memory.
// It returns persistence.ErrNotFound when nothing has been saved yet.
func (s *Server) LoadCurrent() error {
	doc, rev, err := s.Store.LatestMap(s.Scenario)
	if err != nil {
		return err
	}
	s.setCurrent(doc, rev)
	slog.Info("map loaded", "scenario", s.Scenario, "revision", rev.ID, "hexes", len(doc.Hexes))
	return nil
}

func (s *Server) setCurrent(doc *mapdoc.Document, rev persistence.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = doc
	s.rev = rev
}

func (s *Server) snapshot() (*mapdoc.Document, persistence.Revision) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.rev
}

// Handler returns the API routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		rate := s.LOSRate
		if rate <= 0 {
			rate = DefaultLOSRate
		}
		losLimiter := NewRateLimiter(rate, time.Minute)

		mux := http.NewServeMux()
		mux.HandleFunc("/api/v1/status", s.handleStatus)
		mux.HandleFunc("/api/v1/map/data", s.editorOnly(s.handleMapData))
		mux.HandleFunc("/api/v1/map/revisions", s.handleRevisions)
		mux.HandleFunc("/api/v1/map/hex/", s.handleHexDetail)
		mux.HandleFunc("/api/v1/los", RateLimitMiddleware(losLimiter, s.handleLOS))

		s.handler = corsMiddleware(mux)
	})
	return s.handler
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "scenario", s.Scenario, "editor_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed editor origins.
// Set CORS_ORIGINS to a comma-separated list to allow more than localhost.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.AdminKey
}

// editorOnly guards writes behind the admin bearer token.
func (s *Server) editorOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			if s.AdminKey == "" {
				http.Error(w, "map editing disabled (no LOSD_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc, rev := s.snapshot()

	status := map[string]any{
		"scenario": s.Scenario,
		"loaded":   doc != nil,
	}
	if doc != nil {
		g := doc.Grid()
		status["revision"] = rev.ID
		status["hexes"] = len(doc.Hexes)
		status["grid"] = fmt.Sprintf("%dx%d", g.Cols, g.Rows)
		status["saved_at"] = rev.SavedAt
		status["saved_ago"] = humanize.Time(rev.SavedAt)
	}
	writeJSON(w, status)
}

// handleMapData serves GET (current map) and PUT (validate, store, swap).
func (s *Server) handleMapData(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		doc, _ := s.snapshot()
		if doc == nil {
			http.Error(w, "no map loaded", http.StatusNotFound)
			return
		}
		writeJSON(w, doc)
	case http.MethodPut:
		s.handleMapSave(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMapSave(w http.ResponseWriter, r *http.Request) {
	doc, err := mapdoc.Decode(http.MaxBytesReader(w, r.Body, maxMapBytes))
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	if err := mapdoc.Validate(doc); err != nil {
		var verr *mapdoc.ValidationError
		if errors.As(err, &verr) {
			slog.Warn("rejected map save", "scenario", doc.Scenario, "issues", len(verr.Issues))
			writeJSONStatus(w, http.StatusBadRequest, map[string]any{"ok": false, "issues": verr.Issues})
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if doc.Scenario != s.Scenario {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{
			"ok":     false,
			"issues": []mapdoc.Issue{{Path: "scenario", Message: fmt.Sprintf("server edits %q", s.Scenario)}},
		})
		return
	}

	rev, err := s.Store.SaveMap(doc)
	if err != nil {
		slog.Error("map save failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	s.setCurrent(doc, rev)

	warnings := mapdoc.Check(doc)
	if warnings == nil {
		warnings = []mapdoc.Issue{}
	}
	writeJSON(w, map[string]any{
		"ok":       true,
		"revision": rev.ID,
		"warnings": warnings,
	})
}

func (s *Server) handleRevisions(w http.ResponseWriter, r *http.Request) {
	limit := revisionPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	revs, err := s.Store.ListRevisions(s.Scenario, limit)
	if err != nil {
		slog.Error("list revisions failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if revs == nil {
		revs = []persistence.Revision{}
	}
	writeJSON(w, revs)
}

// handleHexDetail returns one hex record: GET /api/v1/map/hex/:id.
func (s *Server) handleHexDetail(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/map/hex/")
	id, err := hexgrid.CanonicalHexID(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, _ := s.snapshot()
	if doc == nil {
		http.Error(w, "no map loaded", http.StatusNotFound)
		return
	}
	rec := mapdoc.NewIndex(doc).Lookup(id)
	if rec == nil {
		http.Error(w, "hex not digitized", http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

// handleLOS evaluates GET /api/v1/los?from=CC.RR&to=CC.RR[&treeLosHeight=N].
func (s *Server) handleLOS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		http.Error(w, "from and to are required", http.StatusBadRequest)
		return
	}

	opts := los.DefaultOptions()
	if s.Options != nil {
		opts = *s.Options
	}
	if v := q.Get("treeLosHeight"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(h) || math.IsInf(h, 0) {
			http.Error(w, "treeLosHeight must be a finite number", http.StatusBadRequest)
			return
		}
		opts.TreeLOSHeight = h
	}

	doc, _ := s.snapshot()
	if doc == nil {
		doc = &mapdoc.Document{}
	}

	// Off-grid endpoints would make the traced line arbitrarily long.
	grid := doc.Grid()
	for _, p := range []struct{ name, id string }{{"from", from}, {"to", to}} {
		o, err := hexgrid.ParseHexID(p.id)
		if err != nil {
			http.Error(w, fmt.Sprintf("%s: %v", p.name, err), http.StatusBadRequest)
			return
		}
		if !hexgrid.InBounds(o, grid) {
			http.Error(w, fmt.Sprintf("%s: %s is outside the %dx%d grid", p.name, o, grid.Cols, grid.Rows), http.StatusBadRequest)
			return
		}
	}

	res, err := los.Evaluate(from, to, doc, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Debug("los evaluated", "from", from, "to", to, "clear", res.Clear, "blocked_at", res.BlockedAt)
	writeJSON(w, res)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}
