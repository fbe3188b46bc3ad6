package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/pose-guard/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	guardHandler := handlers.NewGuardHandler(s.guard, s.profilesDir, s.logger)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Event stream is long-lived and stays outside the request timeout.
		r.Get("/events", guardHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Get("/status", guardHandler.Status)
			r.Post("/modes", guardHandler.SetModes)

			// Frames
			r.Post("/frames", guardHandler.SubmitFrame)
			r.Get("/frames/latest", guardHandler.LatestFrame)

			// Fugitive
			r.Post("/fugitive", guardHandler.SetFugitive)
			r.Delete("/fugitive", guardHandler.ClearFugitive)

			// Onboarding
			r.Post("/onboarding", guardHandler.StartOnboarding)
			r.Post("/onboarding/capture", guardHandler.CaptureOnboarding)

			// Targets
			r.Post("/targets/reload", guardHandler.ReloadTargets)
			r.Post("/targets/select", guardHandler.SelectTargets)
			r.Delete("/targets/{name}", guardHandler.RemoveTarget)
		})
	})
}
