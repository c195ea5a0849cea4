package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/claude/stride/internal/engine"
	"github.com/claude/stride/internal/export"
	"github.com/claude/stride/internal/location"
	"github.com/claude/stride/internal/storage"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleLocationIngest(w http.ResponseWriter, r *http.Request) {
	var fix location.Fix
	if err := json.NewDecoder(r.Body).Decode(&fix); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
		return
	}

	s.source.Publish(fix)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRunRequest struct {
	Type       string  `json:"type"`
	Preset     string  `json:"preset"`
	TargetPace float64 `json:"target_pace"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	opts := engine.StartOptions{Type: req.Type, TargetPace: req.TargetPace}
	if req.Preset != "" {
		preset, ok := s.tracking.FindPreset(req.Preset)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown preset: " + req.Preset})
			return
		}
		opts.PresetName = preset.Name
		if opts.Type == "" {
			opts.Type = preset.Type
		}
		if opts.TargetPace == 0 {
			opts.TargetPace = preset.TargetPace
		}
	}

	if err := s.tracker.Start(opts); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.State())
}

func (s *Server) handlePauseRun(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Pause(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.State())
}

func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Resume(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.State())
}

func (s *Server) handleFinishRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.tracker.Finish()
	if err != nil {
		if errors.Is(err, engine.ErrNoActiveRun) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("finish error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDiscardRun(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Discard(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

func (s *Server) handleRunState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.State())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.LoadHistory(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		if limit < len(runs) {
			runs = runs[:limit]
		}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteHistory(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRecentCues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Recent())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"unit_system": s.tracking.Units(),
		"pace_zones":  s.tracking.Zones(),
		"audio_cues":  s.tracking.AudioCues,
		"presets":     s.tracking.Presets,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	backup, err := export.Build(r.Context(), s.store, export.Settings{
		UnitSystem: s.tracking.Units(),
		PaceZones:  s.tracking.Zones(),
		AudioCues:  s.tracking.AudioCues,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="stride-backup.json"`)
	if err := export.Write(w, backup); err != nil {
		s.log.Error("export write error", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	backup, err := export.Read(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	added, err := export.Import(r.Context(), s.store, backup)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": added})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
