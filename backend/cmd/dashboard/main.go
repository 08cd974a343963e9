package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gradepulse/backend/internal/api"
	"gradepulse/backend/internal/changefeed"
	"gradepulse/backend/internal/dashboard"
	"gradepulse/backend/internal/gateway"
	"gradepulse/backend/internal/logging"
	"gradepulse/backend/internal/shared"
	"gradepulse/backend/internal/syncbus"
)

func main() {
	// 1. Load Configuration
	shared.LoadEnv("")
	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Configuration error: %v", err)
	}
	if err := shared.ValidateConfig(cfg); err != nil {
		log.Fatalf("FATAL: Invalid configuration: %v", err)
	}

	// 2. Logger
	logger, err := logging.Init(cfg.LogDir, shared.GetLogLevel(cfg))
	if err != nil {
		log.Fatalf("FATAL: Logger init error: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting dashboard service",
		zap.String("environment", cfg.Environment),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("change_feed_transport", cfg.ChangeFeed.Transport),
	)

	// 3. Core Components
	bus := syncbus.NewBus(logger)
	client := api.NewClient(cfg.Upstream, logger)
	views := dashboard.NewManager(client, bus, logger)
	defer views.CloseAll()

	// 4. Change Source (poll or stream transport, same bus contract)
	feedCtx, cancelFeed := context.WithCancel(context.Background())
	defer cancelFeed()

	var source changefeed.Source
	switch cfg.ChangeFeed.Transport {
	case "stream":
		source = changefeed.NewStreamSource(cfg.ChangeFeed.StreamURL, bus, logger)
	default:
		source = changefeed.NewPoller(client, bus, cfg.ChangeFeed, logger)
	}
	go source.Run(feedCtx)

	// 5. HTTP Server
	router := gateway.SetupRoutes(gateway.Deps{
		Views:     views,
		Submitter: client,
		Bus:       bus,
		CORS:      cfg.CORS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down dashboard service")

	cancelFeed()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}

	logger.Info("dashboard service stopped")
}
