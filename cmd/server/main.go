package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicflow/backend/internal/config"
	"github.com/clinicflow/backend/internal/db"
	"github.com/clinicflow/backend/internal/engine"
	httpapi "github.com/clinicflow/backend/internal/http"
	"github.com/clinicflow/backend/internal/store"
	"github.com/clinicflow/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "clinicflow-backend").Logger()

	ctx := context.Background()

	st := store.New()
	eng := engine.New(st, engine.Params{
		MismatchPenaltySec:       cfg.MismatchPenaltySec,
		LoadPenaltyWeightSec:     cfg.LoadPenaltyWeightSec,
		DefaultServiceTimeSec:    cfg.DefaultServiceTimeSec,
		ShiftPenaltyThresholdSec: cfg.ShiftPenaltyThresholdSec,
		ShiftPenaltySec:          cfg.ShiftPenaltySec,
		MaxParallelWaiting:       cfg.MaxParallelWaiting,
	}, logger)

	var archive *db.Archive
	if cfg.DatabaseURL != "" {
		archive, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		defer archive.Close()

		clinicians, err := archive.LoadClinicians(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load roster")
		}
		for _, c := range clinicians {
			if err := eng.RegisterClinician(c); err != nil {
				logger.Fatal().Err(err).Str("clinician_id", c.ID).Msg("failed to seed roster")
			}
		}
		logger.Info().Int("clinicians", len(clinicians)).Msg("roster loaded")
	} else {
		logger.Info().Msg("no DATABASE_URL, running in-memory only")
	}

	hubCtx, hubCancel := context.WithCancel(ctx)
	defer hubCancel()
	hub := ws.NewHub(logger)
	go hub.Run(hubCtx)

	if cfg.RebalanceInterval > 0 {
		ticker := time.NewTicker(cfg.RebalanceInterval)
		defer ticker.Stop()
		go func() {
			for range ticker.C {
				decisions, err := eng.Rebalance()
				if err != nil {
					logger.Warn().Err(err).Msg("scheduled rebalance skipped")
					continue
				}
				for _, d := range decisions {
					hub.PublishDecision("rebalance", d)
				}
			}
		}()
	}

	router := httpapi.Router(cfg, eng, archive, hub, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	hubCancel()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
