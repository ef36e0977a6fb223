package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sasagar/rtsv/client"
	"github.com/sasagar/rtsv/internal/config"
	"github.com/sasagar/rtsv/internal/results"
)

func main() {
	cfg := config.Load()

	eventID := flag.String("event", "", "Event id to follow")
	url := flag.String("url", cfg.RelayURL, "Relay base address")
	path := flag.String("path", cfg.RelayPath, "Relay endpoint path")
	databaseURL := flag.String("db", cfg.DatabaseURL, "PostgreSQL URL for results")
	flag.Parse()

	if *eventID == "" || *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "Usage: presenter -event <event-id> [-url <relay-url>] [-path <relay-path>] [-db <database-url>]")
		fmt.Fprintln(os.Stderr, "  -db defaults to DATABASE_URL")
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Str("event", *eventID).
		Logger()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	fetcher, err := results.NewPostgresFetcher(ctx, *databaseURL)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer fetcher.Close()

	manager := client.New(&client.Config{
		URL:    *url,
		Path:   *path,
		Logger: logger,
	})

	board := results.NewBoard(fetcher, logger)
	board.OnChange(func(s results.Snapshot) {
		event := logger.Info().Int("displayed", len(s.Displayed))
		if s.Current == 0 {
			event.Msg("results hidden")
			return
		}
		event.
			Int64("question", s.Current).
			Interface("results", s.Results[s.Current]).
			Msg("results updated")
	})
	board.Attach(manager)

	status := manager.OnStatus(func(st client.State) {
		logger.Info().Str("status", st.String()).Msg("connection status")
	})

	if err := manager.Connect(*eventID); err != nil {
		logger.Fatal().Err(err).Msg("connect failed")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	status.Dispose()
	board.Detach()
	if err := manager.Close(); err != nil {
		logger.Error().Err(err).Msg("close failed")
	}
	logger.Info().Msg("presenter stopped")
}
