// Package web provides an HTTP status server for the shot-monitor daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/shot-monitor/internal/history"
	"github.com/sweeney/shot-monitor/internal/status"
)

const (
	defaultShotLimit = 20
	maxShotLimit     = 500
)

// ShotLister returns recorded shots, newest first.
type ShotLister interface {
	RecentShots(ctx context.Context, limit int) ([]history.Shot, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	shots      ShotLister
	log        zerolog.Logger
}

// New creates a Server that reads state from the given tracker. shots and
// metrics may be nil; /shots.json then returns an empty list and /metrics
// is not served.
func New(addr string, tracker *status.Tracker, shots ShotLister, metrics http.Handler, log zerolog.Logger) *Server {
	s := &Server{
		tracker: tracker,
		shots:   shots,
		log:     log.With().Str("component", "web").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/shots.json", s.handleShots)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// ShotJSON is one entry of /shots.json.
type ShotJSON struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at"`
	DurationMs int64  `json:"duration_ms"`
}

// ShotsJSON is the /shots.json envelope.
type ShotsJSON struct {
	Shots []ShotJSON `json:"shots"`
}

func (s *Server) handleShots(w http.ResponseWriter, r *http.Request) {
	limit := defaultShotLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxShotLimit)
	}

	out := ShotsJSON{Shots: []ShotJSON{}}
	if s.shots != nil {
		shots, err := s.shots.RecentShots(r.Context(), limit)
		if err != nil {
			s.log.Error().Err(err).Msg("list shots")
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		for _, shot := range shots {
			out.Shots = append(out.Shots, ShotJSON{
				ID:         shot.ID,
				StartedAt:  shot.StartedAt.UTC().Format(time.RFC3339Nano),
				EndedAt:    shot.EndedAt.UTC().Format(time.RFC3339Nano),
				DurationMs: shot.Duration.Milliseconds(),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
