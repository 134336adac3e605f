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

	"admin-console/config"
	"admin-console/core/appbootstrap"
	"admin-console/core/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := utils.NewLoggerWith(utils.LoggerOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})
	rt, err := appbootstrap.InitRuntime(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Errorf("close storage: %v", err)
		}
	}()
	if err := rt.StartBackground(context.Background()); err != nil {
		logger.Fatalf("janitor: %v", err)
	}

	go func() {
		if err := rt.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Server.Stop(ctx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
	if err := rt.StopBackground(ctx); err != nil {
		logger.Errorf("janitor stop: %v", err)
	}
}
