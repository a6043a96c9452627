package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/switch", s.handleSwitchDevice)
				r.Get("/usage", s.handleDeviceUsage)
			})
		})

		r.Route("/buildings", func(r chi.Router) {
			r.Get("/", s.handleListBuildings)
			r.Put("/{id}/mode", s.handleSetBuildingMode)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Get("/{deviceID}", s.handleGetRule)
			r.Patch("/{deviceID}", s.handleUpdateRule)
		})

		r.Post("/triggers/{action}", s.handleTrigger)
	})

	return r
}
