package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/stride/internal/config"
	"github.com/claude/stride/internal/engine"
	"github.com/claude/stride/internal/location"
	"github.com/claude/stride/internal/models"
	"github.com/claude/stride/internal/speech"
	"github.com/claude/stride/internal/storage"
)

const testAPIKey = "test-key"

func testTracking() config.TrackingConfig {
	return config.TrackingConfig{
		UnitSystem: "metric",
		PaceZones: []config.PaceZoneConfig{
			{ID: "1", Name: "Warmup", MinPace: 400, MaxPace: 500, Color: "#10B981"},
			{ID: "2", Name: "Tempo", MinPace: 300, MaxPace: 360, Color: "#3B82F6"},
		},
		AudioCues: models.AudioCueSettings{Enabled: true, PaceAlerts: true, DistanceMilestones: true, AlertFrequencySeconds: 60},
		Presets: []config.PresetConfig{
			{Name: "Track Tuesday", Type: "Interval", TargetPace: 270},
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.DiscardHandler)
	tracking := testTracking()
	feed := speech.NewFeed(50)
	tracker := engine.New(store, feed, func() engine.Config {
		return engine.Config{Zones: tracking.Zones(), Cues: tracking.AudioCues, UnitSystem: tracking.Units()}
	}, log)

	source := location.NewPushSource()
	if _, err := source.Subscribe(tracker.HandleFix); err != nil {
		t.Fatal(err)
	}

	return New(store, tracker, source, feed, tracking, testAPIKey, log)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// TestIngestAuth verifies the API key gate on the ingest route.
func TestIngestAuth(t *testing.T) {
	srv := newTestServer(t)
	body := `{"latitude":52.0,"longitude":13.0,"timestamp":1000}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/location", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/ingest/location", strings.NewReader(body))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/ingest/location", body); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// TestIngestRejectsBadCoordinates verifies range validation on fixes.
func TestIngestRejectsBadCoordinates(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/ingest/location", `{"latitude":91.0,"longitude":0,"timestamp":1000}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestRunLifecycle drives a run over HTTP from start to finish and checks
// the session lands in history.
func TestRunLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// Starting without a type is refused.
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/run/start", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("start without type: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/run/start", `{"type":"Free Run"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var state engine.State
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.Status != engine.StatusActive || state.Type != "Free Run" {
		t.Errorf("state = %+v", state)
	}

	// Feed two fixes ~89m apart so distance accumulates.
	doJSON(t, srv, http.MethodPost, "/api/v1/ingest/location", `{"latitude":0,"longitude":0,"timestamp":1000}`)
	doJSON(t, srv, http.MethodPost, "/api/v1/ingest/location", `{"latitude":0,"longitude":0.0008,"timestamp":2000}`)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/run", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if len(state.Path) != 2 {
		t.Errorf("path length = %d, want 2", len(state.Path))
	}
	if state.Distance <= 0 {
		t.Errorf("distance = %f, want > 0", state.Distance)
	}

	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/run/pause", ""); rec.Code != http.StatusOK {
		t.Errorf("pause: status = %d", rec.Code)
	}
	// Pausing twice is an error.
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/run/pause", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("double pause: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/run/resume", ""); rec.Code != http.StatusOK {
		t.Errorf("resume: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/run/finish", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("finish: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var run models.RunSession
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || run.Type != "Free Run" {
		t.Errorf("run = %+v", run)
	}

	// Finishing again with nothing in progress is refused.
	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/run/finish", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("second finish: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/runs", "")
	var runs []models.RunSession
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("runs = %+v", runs)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/runs/"+run.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get run: status = %d", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/runs/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("get missing run: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	if rec := doJSON(t, srv, http.MethodDelete, "/api/v1/runs/"+run.ID, ""); rec.Code != http.StatusOK {
		t.Errorf("delete run: status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/runs", "")
	runs = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("runs after delete = %+v", runs)
	}
}

// TestStartFromPreset verifies preset name, type, and target pace are applied.
func TestStartFromPreset(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/run/start", `{"preset":"Track Tuesday"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var state engine.State
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatal(err)
	}
	if state.PresetName != "Track Tuesday" || state.Type != "Interval" || state.TargetPace != 270 {
		t.Errorf("state = %+v", state)
	}

	if rec := doJSON(t, srv, http.MethodPost, "/api/v1/run/start", `{"preset":"missing"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown preset: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestListRunsLimit verifies the limit query parameter.
func TestListRunsLimit(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 3; i++ {
		run := models.RunSession{ID: fmt.Sprintf("r%d", i), Type: "Free Run", StartTime: int64(1000 * (i + 1)), Duration: 60, Distance: 1}
		if err := srv.store.AppendHistory(t.Context(), run); err != nil {
			t.Fatal(err)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/runs?limit=2", "")
	var runs []models.RunSession
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}
	if rec := doJSON(t, srv, http.MethodGet, "/api/v1/runs?limit=bad", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestSettingsEndpoint verifies the configured zones and presets are exposed.
func TestSettingsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		UnitSystem string            `json:"unit_system"`
		PaceZones  []models.PaceZone `json:"pace_zones"`
		Presets    []config.PresetConfig
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.UnitSystem != "metric" || len(got.PaceZones) != 2 {
		t.Errorf("settings = %+v", got)
	}
}

// TestExportImportRoundTrip verifies a backup downloaded from one server can
// be imported into a fresh one.
func TestExportImportRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	run := models.RunSession{ID: "r1", Type: "Free Run", StartTime: 1000, Duration: 600, Distance: 2, Calories: 120, AvgPace: "5:00"}
	if err := srv.store.AppendHistory(t.Context(), run); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "stride-backup.json") {
		t.Errorf("content disposition = %q", cd)
	}

	fresh := newTestServer(t)
	rec2 := doJSON(t, fresh, http.MethodPost, "/api/v1/import", rec.Body.String())
	if rec2.Code != http.StatusOK {
		t.Fatalf("import: status = %d, body = %s", rec2.Code, rec2.Body.String())
	}
	var result map[string]int
	if err := json.Unmarshal(rec2.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result["imported"] != 1 {
		t.Errorf("imported = %d, want 1", result["imported"])
	}

	got, err := fresh.store.GetRun(t.Context(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.AvgPace != "5:00" {
		t.Errorf("avg pace = %q, want %q", got.AvgPace, "5:00")
	}

	if rec := doJSON(t, fresh, http.MethodPost, "/api/v1/import", "not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad import: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestCuesEndpoint verifies announced cues show up in the feed endpoint.
func TestCuesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.feed.Announce(speech.Cue{Category: speech.CategoryMilestone, Text: "1 kilometer completed"})

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/cues", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var cues []speech.Cue
	if err := json.Unmarshal(rec.Body.Bytes(), &cues); err != nil {
		t.Fatal(err)
	}
	if len(cues) != 1 || cues[0].Text != "1 kilometer completed" {
		t.Errorf("cues = %+v", cues)
	}
}
