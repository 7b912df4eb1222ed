package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codetrek/mongotrigger/internal/config"
	"github.com/codetrek/mongotrigger/internal/services"
)

func main() {
	cfg := config.LoadConfig()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	mgr := services.NewManager(cfg, services.Options{
		RunWatchers: true,
		RunWorker:   true,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.Run(ctx); err != nil {
		logger.WithError(err).Fatal("Startup failed")
	}
	logger.Info("mongotrigger started")

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-mgr.StreamErrors():
		logger.WithError(err).Error("Change stream failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Watch.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	mgr.Shutdown(shutdownCtx)
}
