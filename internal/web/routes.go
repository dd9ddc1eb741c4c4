package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/lKakarot/phone-cleaner/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	scanHandler := handlers.NewScanHandler(s.config, s.jobManager)
	playableHandler := handlers.NewPlayableHandler()

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Scans (long-running operations)
		r.Get("/scans", scanHandler.List)
		r.Post("/scans", scanHandler.Start)
		r.Get("/scans/{jobId}", scanHandler.Status)
		r.Get("/scans/{jobId}/events", scanHandler.Events)
		r.Delete("/scans/{jobId}", scanHandler.CancelJob)

		// Playable resources (synchronous, loader-backed)
		r.Post("/playables", playableHandler.Prepare)
	})
}
