package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/internal/api"
	"github.com/sasagar/rtsv/internal/config"
	"github.com/sasagar/rtsv/relay"
	"github.com/sasagar/rtsv/socketio"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis backplane
	var redisClient *redis.Client
	var adapter socketio.AdapterFactory
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		adapter = socketio.NewRedisAdapterFactory(ctx, redisClient, logger)
		logger.Info().Msg("using Redis backplane")
	}

	provider := relay.NewProvider(func() (*relay.Relay, error) {
		if redisClient != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				return nil, err
			}
		}

		return relay.New(&relay.Config{
			Path:              cfg.RelayPath,
			PingInterval:      cfg.PingInterval,
			PingTimeout:       cfg.PingTimeout,
			MaxPayload:        cfg.MaxPayload,
			AllowedOrigins:    cfg.CORSOrigins,
			Adapter:           adapter,
			ExcludeSender:     cfg.ExcludeSender,
			RequireMembership: cfg.RequireMembership,
			Logger:            logger,
		}), nil
	}, logger)

	// Create router
	router := api.NewRouter(logger, provider, api.Options{
		RelayPath:   cfg.RelayPath,
		CORSOrigins: cfg.CORSOrigins,
		Redis:       redisClient,
	})

	// Create server. WebSocket sessions manage their own deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("path", cfg.RelayPath).
			Msg("starting relay server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Hijacked WebSocket connections are not covered by Shutdown.
	if err := provider.Close(); err != nil {
		logger.Error().Err(err).Msg("relay close failed")
	}

	logger.Info().Msg("server stopped")
}
