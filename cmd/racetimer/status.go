package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/link"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/race"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

type snapshotter interface {
	Snapshot() *stopwatch.Stopwatch
}

type statuser interface {
	Status() link.Status
}

type runSource interface {
	ActiveRun() race.Run
}

// statusServer exposes read-only views of the clock over HTTP.
type statusServer struct {
	clock     snapshotter
	device    statuser
	runs      runSource
	id        string
	startedAt time.Time
	mux       *http.ServeMux
}

func newStatusServer(clock snapshotter, device statuser, runs runSource, id string) *statusServer {
	s := &statusServer{
		clock:     clock,
		device:    device,
		runs:      runs,
		id:        id,
		startedAt: time.Now(),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *statusServer) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/stopwatch", s.handleStopwatch)
	s.mux.HandleFunc("/api/v1/link", s.handleLink)
	s.mux.HandleFunc("/api/v1/run", s.handleRun)
}

// Handler returns the routes wrapped in CORS handling so browser
// dashboards on other origins can poll the clock.
func (s *statusServer) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.mux)
}

func (s *statusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
		"id":      s.id,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *statusServer) handleStopwatch(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.clock.Snapshot())
}

func (s *statusServer) handleLink(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.device.Status())
}

func (s *statusServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.runs.ActiveRun())
}

func allowRead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
