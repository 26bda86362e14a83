// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/courtline/courtline/internal/allocation"
	"github.com/courtline/courtline/internal/api/courts"
	"github.com/courtline/courtline/internal/api/divisions"
	scheduleapi "github.com/courtline/courtline/internal/api/schedule"
	standingsapi "github.com/courtline/courtline/internal/api/standings"
	"github.com/courtline/courtline/internal/config"
	"github.com/courtline/courtline/internal/db"
	"github.com/courtline/courtline/internal/division"
	"github.com/courtline/courtline/internal/scheduler"
	"github.com/courtline/courtline/internal/standings"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	allocationEngine, err := allocation.NewEngine(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create allocation engine")
	}
	standingsEngine, err := standings.NewEngine(database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create standings engine")
	}
	coordinator, err := division.NewCoordinator(database, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create division coordinator")
	}

	scheduleapi.InitHandlers(allocationEngine, coordinator, cfg.Scheduling)
	standingsapi.InitHandlers(standingsEngine, coordinator)
	divisions.InitHandlers(coordinator)
	courts.InitHandlers(database.Queries)

	if err := scheduler.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	if err := scheduler.RegisterStatusRefreshJob(coordinator, cfg.Scheduling.StatusRefreshCron); err != nil {
		log.Fatal().Err(err).Msg("Failed to register status refresh job")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	server := newServer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := scheduler.Stop(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop scheduler")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
