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
	"github.com/dvloznov/altcredit/internal/config"
	"github.com/dvloznov/altcredit/internal/jobs"
	"github.com/dvloznov/altcredit/internal/jobs/inmemory"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/metrics"
	"github.com/dvloznov/altcredit/internal/scoring"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (or set ALTCREDIT_CONFIG)")
		port       = flag.String("port", "", "HTTP server port (overrides PORT)")
		source     = flag.String("source", app.SourceKnot, "primary transaction source: knot or warehouse")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log := logger.FromConfig(cfg.Log.Level, cfg.Log.Format)
	ctx := logger.WithContext(context.Background(), log)
	m := metrics.New()

	deps, err := app.Open(ctx, cfg, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize clients")
	}
	defer deps.Close()

	if !deps.Knot.Configured() {
		log.Warn().Msg("Knot API not configured - login will score synthetic histories")
	}

	fetcher, err := deps.TransactionSource(*source)
	if err != nil {
		log.Fatal().Err(err).Str("source", *source).Msg("Failed to create transaction source")
	}

	// Warehouse routes answer 503 unless BigQuery is configured.
	var (
		publisher jobs.Publisher
		jobStore  jobs.JobStore
		spend     handlers.SpendReader
		jobQueue  *inmemory.Queue
	)
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if l, err := deps.Loader(); err != nil {
		log.Warn().Err(err).Msg("Warehouse disabled - load and spend endpoints will return 503")
	} else {
		store := inmemory.NewStore()
		jobQueue = inmemory.NewQueue(cfg.Jobs.QueueSize, store,
			inmemory.WithWorkers(cfg.Jobs.Workers),
			inmemory.WithMaxRetries(cfg.Jobs.MaxRetries),
		)
		publisher, jobStore, spend = jobQueue, store, deps.Warehouse

		if err := jobQueue.Start(workerCtx, jobs.LoadHandler(l)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job queue")
		}
	}

	engine := scoring.NewEngine()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.Health)
	mux.Handle("GET /metrics", m.Handler())
	handlers.NewScoreHandler(engine, fetcher, m).Register(mux)
	handlers.NewKnotHandler(deps.Knot, fetcher).Register(mux)
	handlers.NewWarehouseHandler(publisher, jobStore, spend).Register(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      middleware.Chain(mux, log, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("source", *source).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if jobQueue != nil {
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
		if err := jobQueue.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close job queue")
		}
	}

	log.Info().Msg("Server exited")
}
