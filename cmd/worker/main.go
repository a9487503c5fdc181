package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/altcredit/internal/app"
	"github.com/dvloznov/altcredit/internal/config"
	"github.com/dvloznov/altcredit/internal/jobs"
	"github.com/dvloznov/altcredit/internal/jobs/inmemory"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (or set ALTCREDIT_CONFIG)")
		sources    = flag.String("sources", "knot,nessie", "comma-separated sources to load")
		mode       = flag.String("mode", "append", "load mode: append or replace")
		interval   = flag.Duration("interval", 0, "repeat the loads on this interval; 0 runs them once")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log := logger.FromConfig(cfg.Log.Level, cfg.Log.Format)

	batch, err := loadJobs(*sources, *mode)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid load request")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	deps, err := app.Open(ctx, cfg, metrics.New())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize clients")
	}
	defer deps.Close()

	l, err := deps.Loader()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create loader")
	}

	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, jobStore,
		inmemory.WithWorkers(cfg.Jobs.Workers),
		inmemory.WithMaxRetries(cfg.Jobs.MaxRetries),
	)
	if err := jobQueue.Start(ctx, jobs.LoadHandler(l)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	failed := 0
	for {
		ids, err := publish(ctx, jobQueue, batch)
		if err != nil {
			log.Error().Err(err).Msg("Failed to enqueue loads")
			failed++
		} else {
			n, err := waitForJobs(ctx, jobStore, ids, quit)
			if err != nil {
				log.Warn().Err(err).Msg("Stopped waiting for loads")
				break
			}
			failed += n
		}

		if *interval <= 0 {
			break
		}
		log.Info().Dur("interval", *interval).Msg("Waiting for next load")
		select {
		case <-time.After(*interval):
			continue
		case <-quit:
		}
		break
	}

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Int("failed", failed).Msg("Worker service exited")
	if failed > 0 {
		deps.Close()
		os.Exit(1)
	}
}

// loadJobs builds one job per comma-separated source, in order and without
// duplicates.
func loadJobs(sources, mode string) ([]*jobs.LoadJob, error) {
	var batch []*jobs.LoadJob
	seen := make(map[string]bool)
	for _, s := range strings.Split(sources, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		job, err := jobs.NewLoadJob(s, mode)
		if err != nil {
			return nil, err
		}
		if seen[job.Source] {
			continue
		}
		seen[job.Source] = true
		batch = append(batch, job)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("no sources given")
	}
	return batch, nil
}

// publish enqueues fresh copies of the batch and returns their ids.
func publish(ctx context.Context, p jobs.Publisher, batch []*jobs.LoadJob) ([]string, error) {
	ids := make([]string, 0, len(batch))
	for _, tmpl := range batch {
		job := &jobs.LoadJob{Source: tmpl.Source, Mode: tmpl.Mode}
		if err := p.PublishLoad(ctx, job); err != nil {
			return ids, fmt.Errorf("publish %s: %w", tmpl.Source, err)
		}
		ids = append(ids, job.JobID)
	}
	return ids, nil
}

// waitForJobs polls the store until every job is completed or failed and
// returns the number that failed.
func waitForJobs(ctx context.Context, store jobs.JobStore, ids []string, quit <-chan os.Signal) (int, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		failed, done, err := settled(ctx, store, ids)
		if err != nil {
			return 0, err
		}
		if done {
			return failed, nil
		}

		select {
		case <-ticker.C:
		case <-quit:
			return 0, fmt.Errorf("interrupted")
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func settled(ctx context.Context, store jobs.JobStore, ids []string) (failed int, done bool, err error) {
	log := logger.FromContext(ctx)
	for _, id := range ids {
		job, err := store.GetJob(ctx, id)
		if err != nil {
			return 0, false, err
		}
		switch job.Status {
		case jobs.JobStatusCompleted:
		case jobs.JobStatusFailed:
			failed++
		default:
			return 0, false, nil
		}
	}

	for _, id := range ids {
		job, _ := store.GetJob(ctx, id)
		ev := log.Info()
		if job.Status == jobs.JobStatusFailed {
			ev = log.Error().Str("error", job.Error)
		}
		if job.Result != nil {
			ev = ev.Int("transactions", job.Result.Transactions).
				Int("products", job.Result.Products).
				Int("records", job.Result.Records).
				Strs("failed_merchants", job.Result.FailedMerchants)
		}
		ev.Str("job_id", id).Str("source", job.Source).Str("status", string(job.Status)).Msg("Load finished")
	}
	return failed, true, nil
}
