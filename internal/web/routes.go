package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/staff-clock/internal/web/handlers"
	"github.com/kozaktomas/staff-clock/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.db)
	employeeHandler := handlers.NewEmployeeHandler(s.config, s.events)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", healthHandler.Check)

	// Employee routes authenticate with a bearer token
	s.router.Route("/api/employee", func(r chi.Router) {
		r.Use(middleware.RequireEmployee(s.employees))

		r.Get("/info", employeeHandler.Info)
		r.Post("/clock", employeeHandler.Clock)
		r.Get("/history", employeeHandler.History)
	})
}
