package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/stride/internal/config"
	"github.com/claude/stride/internal/engine"
	"github.com/claude/stride/internal/location"
	"github.com/claude/stride/internal/speech"
	"github.com/claude/stride/internal/storage"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    storage.Store
	tracker  *engine.Tracker
	source   *location.PushSource
	feed     *speech.Feed
	tracking config.TrackingConfig
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(store storage.Store, tracker *engine.Tracker, source *location.PushSource, feed *speech.Feed, tracking config.TrackingConfig, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:    store,
		tracker:  tracker,
		source:   source,
		feed:     feed,
		tracking: tracking,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Ingest endpoint (API key required)
	s.router.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/location", s.handleLocationIngest)
	})

	// Run lifecycle
	s.router.Post("/api/v1/run/start", s.handleStartRun)
	s.router.Post("/api/v1/run/pause", s.handlePauseRun)
	s.router.Post("/api/v1/run/resume", s.handleResumeRun)
	s.router.Post("/api/v1/run/finish", s.handleFinishRun)
	s.router.Post("/api/v1/run/discard", s.handleDiscardRun)
	s.router.Get("/api/v1/run", s.handleRunState)

	// History
	s.router.Get("/api/v1/runs", s.handleListRuns)
	s.router.Get("/api/v1/runs/{id}", s.handleGetRun)
	s.router.Delete("/api/v1/runs/{id}", s.handleDeleteRun)

	// Cues, settings, backups
	s.router.Get("/api/v1/cues", s.handleRecentCues)
	s.router.Get("/api/v1/settings", s.handleSettings)
	s.router.Get("/api/v1/export", s.handleExport)
	s.router.Post("/api/v1/import", s.handleImport)
}
