package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/voicearcade/server/internal/ai"
	"github.com/voicearcade/server/internal/clock"
	"github.com/voicearcade/server/internal/config"
	"github.com/voicearcade/server/internal/events"
	"github.com/voicearcade/server/internal/httpapi"
	"github.com/voicearcade/server/internal/orchestrator"
	"github.com/voicearcade/server/internal/scheduler"
	"github.com/voicearcade/server/internal/snapshot"
	"github.com/voicearcade/server/internal/store"
	"github.com/voicearcade/server/internal/strategy"
	"github.com/voicearcade/server/internal/strategy/bingo"
	"github.com/voicearcade/server/internal/strategy/trivia"
	"github.com/voicearcade/server/internal/strategy/twentyq"
	"github.com/voicearcade/server/internal/voice"
	"github.com/voicearcade/server/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	if cfg.Production() {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	var cache snapshot.Cache
	if cfg.DatabaseDSN != "" {
		pg, err := snapshot.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		cache = pg
		log.Info("snapshot cache backed by postgres")
	} else {
		cache = snapshot.NewMemory()
		log.Info("snapshot cache in memory; set DATABASE_DSN to persist")
	}

	openAI := ai.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel)
	clk := clock.New()
	bus := events.NewBus(log)
	st := store.New(cache, cfg.SnapshotTTL, log)
	sched := scheduler.New(clk, bus, log)
	router := voice.NewRouter(openAI, log)

	registry := strategy.NewRegistry()
	registry.Register(trivia.New(openAI, log))
	registry.Register(twentyq.New(openAI, log))
	registry.Register(bingo.New(openAI, log, time.Now().UnixNano()))

	orch := orchestrator.New(orchestrator.Config{
		Defaults: orchestrator.Defaults{
			MaxPlayers:  cfg.MaxPlayers,
			MinPlayers:  cfg.MinPlayers,
			MaxRounds:   cfg.MaxRounds,
			TurnTimeout: cfg.TurnTimeout,
		},
		GracePeriod: cfg.GracePeriod,
	}, st, sched, bus, router, registry, clk, log)

	hub := ws.NewHub(bus, log)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(orch, hub, log),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
