package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/internal/api/middleware"
	"github.com/sasagar/rtsv/internal/handlers"
	"github.com/sasagar/rtsv/relay"
)

// Options configures the router.
type Options struct {
	RelayPath   string
	CORSOrigins []string
	// Redis is the backplane client, nil when the registry is in memory.
	Redis *redis.Client
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, provider *relay.Provider, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(provider, opts.Redis)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// The relay answers on its path with or without a trailing slash.
	path := relay.NormalizePath(opts.RelayPath)
	r.Handle(path, provider)
	r.Handle(path+"/*", provider)

	return r
}
