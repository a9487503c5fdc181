package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/altcredit/internal/api/handlers"
	"github.com/dvloznov/altcredit/internal/api/middleware"
	"github.com/dvloznov/altcredit/internal/app"
	"github.com/dvloznov/altcredit/internal/bridge"
	"github.com/dvloznov/altcredit/internal/config"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (or set ALTCREDIT_CONFIG)")
		port       = flag.String("port", "", "HTTP server port (overrides BRIDGE_PORT)")
		timeout    = flag.Duration("model-timeout", 2*time.Minute, "upper bound for a single model call")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.BridgePort = *port
	}

	log := logger.FromConfig(cfg.Log.Level, cfg.Log.Format)
	ctx := logger.WithContext(context.Background(), log)
	m := metrics.New()

	runner, err := bridge.NewGeminiRunner(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model runner")
	}

	deps, err := app.Open(ctx, cfg, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize clients")
	}
	defer deps.Close()

	opts := []bridge.ServiceOption{bridge.WithMetrics(m), bridge.WithTimeout(*timeout)}
	if deps.Warehouse != nil {
		opts = append(opts, bridge.WithQuerier(deps.Warehouse))
	} else {
		log.Warn().Msg("Warehouse not configured - /ask is disabled")
	}
	svc := bridge.NewService(runner, cfg.Bridge, opts...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("GET /metrics", m.Handler())
	handlers.NewBridgeHandler(svc).Register(mux)

	// Model calls run long; the write timeout follows the model timeout.
	server := &http.Server{
		Addr:         ":" + cfg.Server.BridgePort,
		Handler:      middleware.Chain(mux, log, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: *timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.BridgePort).
			Str("default_model", cfg.Bridge.DefaultModel).
			Msg("Starting bridge server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down bridge...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Bridge exited")
}
