package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/avelinsk/livevote-backend/internal/config"
	"github.com/avelinsk/livevote-backend/internal/httpapi"
	"github.com/avelinsk/livevote-backend/internal/hub"
	"github.com/avelinsk/livevote-backend/internal/session"
	"github.com/avelinsk/livevote-backend/internal/store"
	"github.com/avelinsk/livevote-backend/internal/tally"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open store", zap.Error(err))
	}

	h := hub.NewHub(log)
	sess := session.New(h, tally.NewStore(), db, cfg.ExportDir, log)
	handler := httpapi.SetupRoutes(sess, cfg, log)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server stopped")
}
