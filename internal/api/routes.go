package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router and middleware stack.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/accounts", h.ListAccounts)

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/audiences", h.ListAudiences)
			r.Get("/benchmarks", h.GetBenchmarks)

			r.Post("/sync", h.StartSync)
			r.Get("/sync", h.SyncStatus)
			r.Delete("/sync", h.CancelSync)

			r.Post("/recommendations", h.GenerateRecommendations)
		})

		r.Get("/audiences/{audienceID}/recommendations", h.ListRecommendations)
	})

	return r
}
