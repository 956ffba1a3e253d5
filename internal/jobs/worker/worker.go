package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/docsentinel-backend/internal/data/repos"
	"github.com/yungbote/docsentinel-backend/internal/jobs/runtime"
	"github.com/yungbote/docsentinel-backend/internal/pkg/dbctx"
	"github.com/yungbote/docsentinel-backend/internal/pkg/envutil"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleAfter is how long a job may stay processing before it is requeued.
	StaleAfter   time.Duration
	ReapInterval time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 2),
		PollInterval: envutil.Seconds("WORKER_POLL_INTERVAL_SECONDS", time.Second),
		StaleAfter:   envutil.Seconds("WORKER_STALE_AFTER_SECONDS", 30*time.Minute),
		ReapInterval: envutil.Seconds("WORKER_REAP_INTERVAL_SECONDS", time.Minute),
	}
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Minute
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = time.Minute
	}
	return c
}

type Worker struct {
	log      *logger.Logger
	repo     repos.ProcessingJobRepo
	registry *runtime.Registry
	cfg      Config
	wg       sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.ProcessingJobRepo, registry *runtime.Registry, cfg Config) *Worker {
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		cfg:      cfg.withDefaults(),
	}
}

// Start launches the poll loops and the stale-job reaper. They stop when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.reapLoop(ctx)
	}()
}

// Wait blocks until every loop started by Start has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil && w.RunOnce(ctx, workerID) {
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	job, err := w.repo.ClaimNext(dbctx.Context{Ctx: ctx})
	if err != nil {
		w.log.Warn("ClaimNext failed", "worker_id", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	jc := runtime.NewContext(ctx, job, w.repo, w.log)
	h, ok := w.registry.Get(string(job.JobType))
	if !ok {
		w.log.Warn("No handler registered for job_type", "worker_id", workerID, "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: string(job.JobType)})
		return true
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "panic", r)
				jc.Fail("panic", errFromRecover(r))
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			// The processing service finishes its own jobs; this only catches
			// errors raised before it could.
			jc.Fail("run", runErr)
		}
	}()
	return true
}

func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStale(dbctx.Context{Ctx: ctx}, w.cfg.StaleAfter)
			if err != nil {
				w.log.Warn("RequeueStale failed", "error", err)
				continue
			}
			if n > 0 {
				w.log.Warn("Requeued stale jobs", "count", n, "stale_after", w.cfg.StaleAfter.String())
			}
		}
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
