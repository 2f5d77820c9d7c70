package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/link"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/race"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

type fixedClock struct{ sw *stopwatch.Stopwatch }

func (f fixedClock) Snapshot() *stopwatch.Stopwatch { return f.sw.Clone() }

type fixedDevice struct{ st link.Status }

func (f fixedDevice) Status() link.Status { return f.st }

func newTestStatusServer() *statusServer {
	now := time.Date(2017, 1, 8, 12, 0, 0, 0, time.UTC)
	sw := stopwatch.New(now)
	sw.Set(3725, now)
	sw.State = stopwatch.Running

	dev := fixedDevice{st: link.Status{
		Enabled:   true,
		State:     link.StateLinked,
		Port:      "/dev/ttyACM0",
		SessionID: "0f7c2d4e-aaaa-bbbb-cccc-000000000000",
		LinkedAt:  now,
	}}
	runs := race.NewHolder(race.Run{Name: "Super Mario 64", Runners: []*race.Runner{{Name: "cheese"}}})
	return newStatusServer(fixedClock{sw}, dev, runs, "test-id")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestStatusServer().Handler()

	w := get(t, h, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test-id", resp["id"])
	assert.Equal(t, Version, resp["version"])
}

func TestStopwatchEndpoint(t *testing.T) {
	h := newTestStatusServer().Handler()

	w := get(t, h, "/api/v1/stopwatch")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		State     string `json:"state"`
		Raw       int    `json:"raw"`
		Formatted string `json:"formatted"`
		Results   []any  `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.State)
	assert.Equal(t, 3725, resp.Raw)
	assert.Equal(t, "1:02:05", resp.Formatted)
	assert.Len(t, resp.Results, 4)
}

func TestLinkEndpoint(t *testing.T) {
	h := newTestStatusServer().Handler()

	w := get(t, h, "/api/v1/link")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "LINKED", resp["state"])
	assert.Equal(t, "/dev/ttyACM0", resp["port"])
	assert.Equal(t, true, resp["enabled"])
	assert.NotContains(t, resp, "last_traffic")
}

func TestRunEndpoint(t *testing.T) {
	h := newTestStatusServer().Handler()

	w := get(t, h, "/api/v1/run")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Super Mario 64")
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestStatusServer().Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stopwatch", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestStatusServer().Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stopwatch", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
}
