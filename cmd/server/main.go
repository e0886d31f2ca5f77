package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tsvoboda/crisis-council-backend/internal/cache"
	"github.com/tsvoboda/crisis-council-backend/internal/config"
	"github.com/tsvoboda/crisis-council-backend/internal/election"
	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/httpapi"
	"github.com/tsvoboda/crisis-council-backend/internal/ledger"
	"github.com/tsvoboda/crisis-council-backend/internal/notify"
	"github.com/tsvoboda/crisis-council-backend/internal/rounds"
	"github.com/tsvoboda/crisis-council-backend/internal/store"
	"github.com/tsvoboda/crisis-council-backend/internal/teams"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := buildLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cache.New(time.Duration(cfg.SnapshotTTLSeconds) * time.Second)
	hub := notify.NewHub(ctx)

	coord := election.NewCoordinator(db, c, hub, logger)
	led := ledger.New(db, c, hub, logger)
	tm := teams.NewService(db, c, hub, logger)
	engine := rounds.NewEngine(db, c, hub, coord, logger, rounds.Options{
		SnapshotTTL:    time.Duration(cfg.SnapshotTTLSeconds) * time.Second,
		ResultsSeconds: cfg.ResultsSeconds,
		Policy:         game.EveryNRounds{N: cfg.LeaderTermRounds},
	})

	// The sweep is the reliability baseline; the websocket hub is only a
	// wake-up optimization on top of polling.
	go engine.Run(ctx, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	api := httpapi.NewAPI(engine, coord, led, tm, logger)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(api, hub),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
