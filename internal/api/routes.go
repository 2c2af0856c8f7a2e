package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HandleHealth)

	// Unsubscribe landing is linked from delivered mail, so it lives
	// outside /api.
	r.Get("/unsubscribe/{token}/{sig}", h.HandleUnsubscribe)

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.HandleCreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGetCampaign)
				r.Post("/prepare", h.HandlePrepare)
				r.Post("/dispatch", h.HandleDispatch)
				r.Post("/test", h.HandleSendTest)
				r.Get("/stats", h.HandleStats)
				r.Get("/preview", h.HandlePreview)
			})
		})
	})

	return r
}
