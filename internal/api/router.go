/**
 * @description
 * This file sets up the HTTP router using go-chi/chi. It applies logging, recovery,
 * timeout and CORS middleware, and maps the document, webhook, health and metrics routes.
 * Document routes require a Supabase token when a JWT secret is configured.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// JWTSecret enables authentication on document routes when non-empty.
	JWTSecret string
	JWTIssuer string
	Logger    zerolog.Logger
}

// NewRouter creates a new Chi router and registers the service routes.
func NewRouter(h *Handler, webhook http.Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Method(http.MethodPost, "/webhook/dodo-payments", webhook)

	r.Group(func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(SupabaseAuthMiddleware(opts.JWTSecret, opts.JWTIssuer))
		}

		r.Post("/process-pdf", h.handleProcessPDF)
		r.Delete("/delete-collection", h.handleDeleteCollection)
		r.Post("/query-collection", h.handleQueryCollection)
	})

	return r
}
