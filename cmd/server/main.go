package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vacme/internal/geo"
	geometrics "vacme/internal/geo/metrics"
	"vacme/internal/platform/config"
	"vacme/internal/platform/httpserver"
	"vacme/internal/platform/logger"
	"vacme/internal/platform/postgres"
	"vacme/internal/vmdl"
	"vacme/internal/vmdl/handler"
	vmdlmetrics "vacme/internal/vmdl/metrics"
	"vacme/internal/vmdl/models"
	"vacme/internal/vmdl/store"
)

// main wires high-level dependencies: config, logging, database, the PLZ
// resolver, the per-disease registry services and their cron schedules, and
// the ops HTTP surface. Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("init logger", zap.Error(err))
	}
	defer log.Sync()

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	resolver := geo.NewResolver(geo.NewReferenceData(), cfg.VMDL.KantonTenant, geometrics.New(), log)
	pendingStore := store.NewPostgres(db, log)
	uploadMetrics := vmdlmetrics.New()

	runner := vmdl.NewRunner(log)
	diseases := []struct {
		disease  models.Disease
		clientID string
		cronSpec string
	}{
		{models.DiseaseCovid, cfg.VMDL.ClientIDCovid, cfg.VMDL.CronCovid},
		{models.DiseaseMpox, cfg.VMDL.ClientIDMpox, cfg.VMDL.CronMpox},
	}
	for _, d := range diseases {
		tokens := vmdl.NewTokenSource(vmdl.TokenConfig{
			TokenURL: cfg.VMDL.TokenURL,
			TenantID: cfg.VMDL.TenantID,
			Username: cfg.VMDL.Username,
			Password: cfg.VMDL.Password,
			ClientID: d.clientID,
		}, log)

		svc, err := vmdl.NewService(d.disease, vmdl.Deps{
			Store:              pendingStore,
			Client:             vmdl.NewClient(cfg.VMDL.BaseURL, tokens, log),
			Resolver:           resolver,
			Metrics:            uploadMetrics,
			Log:                log,
			ReportingUnitID:    cfg.VMDL.ReportingUnitID,
			ChunkLimit:         cfg.VMDL.ChunkLimit,
			ThreeQueryStrategy: cfg.VMDL.ThreeQueryStrategy,
		})
		if err != nil {
			log.Fatal("build registry service", zap.Error(err))
		}
		if err := runner.Register(svc, d.cronSpec); err != nil {
			log.Fatal("register registry schedule", zap.Error(err))
		}
	}

	srv := httpserver.New(cfg.Addr, handler.New(runner, log).Routes())

	log.Info("starting vacme-vmdl",
		zap.String("addr", cfg.Addr),
		zap.Int("chunk_limit", cfg.VMDL.ChunkLimit),
		zap.Bool("three_query_strategy", cfg.VMDL.ThreeQueryStrategy))

	runner.Start()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Warn("scheduler did not drain in time", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("graceful shutdown failed", zap.Error(err))
	}
}
