package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pixelating-community/web-sub001/internal/config"
	"github.com/pixelating-community/web-sub001/internal/db"
	"github.com/pixelating-community/web-sub001/internal/httpapi"
	"github.com/pixelating-community/web-sub001/internal/metrics"
	"github.com/pixelating-community/web-sub001/internal/perspectives/notify"
	"github.com/pixelating-community/web-sub001/internal/perspectives/ratelimit"
	"github.com/pixelating-community/web-sub001/internal/perspectives/service"
	"github.com/pixelating-community/web-sub001/internal/perspectives/store/sqlite"
	"github.com/pixelating-community/web-sub001/internal/perspectives/token"
)

func main() {
	logger := log.New(os.Stdout, "perspectives-server ", log.LstdFlags|log.LUTC)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
			logger.Fatalf("seed dev: %v", err)
		}
	}

	// All writes go through one worker so every mutation is serialized.
	writer := db.NewWorker(conn)
	defer writer.Close()

	// Stores
	ledger := sqlite.NewChargeLedger(conn, writer)
	reflections := sqlite.NewReflectionStore(conn, writer)
	events := sqlite.NewWebhookEventStore(conn, writer)

	m := metrics.New()
	notifier := notify.NewRegistry()
	notifier.Subscribers = m.SSESubscribers

	codec := token.NewCodec(cfg.TokenSecret)
	if !codec.Configured() {
		logger.Printf("warning: PERSPECTIVES_TOKEN_SECRET is empty; verify will refuse to issue tokens")
	}
	if cfg.WebhookSecret == "" {
		logger.Printf("warning: PERSPECTIVES_WEBHOOK_SECRET is empty; webhook deliveries will be rejected")
	}

	// Services
	access := service.NewAccessService(codec, ledger)
	gate := service.NewWriteGate(service.WriteGateDeps{
		Reflections: reflections,
		Notifier:    notifier,
		Logger:      logger,
		Metrics:     m,
		AdminToken:  cfg.AdminToken,
	})
	webhooks := service.NewWebhookProcessor(ledger, events, logger, m)
	pruner := service.NewEventPruner(events, service.PrunerConfig{
		RetentionDays: cfg.EventRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        logger,
		Addr:          cfg.HTTPAddr,
		Access:        access,
		Gate:          gate,
		Webhooks:      webhooks,
		Reflections:   reflections,
		Notifier:      notifier,
		Limiter:       ratelimit.NewLimiter(),
		Metrics:       m,
		WebhookSecret: cfg.WebhookSecret,
	})

	pruner.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("listening on %s (env=%s)", cfg.HTTPAddr, cfg.Env)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server error: %v", err)
	}

	pruner.Stop()
	logger.Printf("shutdown complete")
}
