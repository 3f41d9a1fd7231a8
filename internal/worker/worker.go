// Package worker drains the pending submission queue in the background.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vindash/internal/config"
	"github.com/vindash/internal/database"
)

// Processor handles a single claimed submission.
type Processor interface {
	ProcessSubmission(ctx context.Context, submission *database.Submission) error
}

// Worker claims pending submissions on an interval and processes them
// with bounded concurrency.
type Worker struct {
	cfg            *config.WorkerConfig
	submissionRepo *database.SubmissionRepository
	processor      Processor
}

// New creates a new worker
func New(cfg *config.WorkerConfig, db *sqlx.DB, processor Processor) *Worker {
	return &Worker{
		cfg:            cfg,
		submissionRepo: database.NewSubmissionRepository(db),
		processor:      processor,
	}
}

// Run claims and processes submissions until the context is cancelled.
// It blocks, callers start it in a goroutine.
func (w *Worker) Run(ctx context.Context) {
	logrus.Infof("Worker started, polling every %v with concurrency %d", w.cfg.PollInterval, w.cfg.Concurrency)

	jobs := make(chan *database.Submission, w.cfg.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for submission := range jobs {
				if err := w.processor.ProcessSubmission(ctx, submission); err != nil {
					logrus.Errorf("Failed to process submission %s: %v", submission.ID, err)
				}
			}
		}()
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			logrus.Info("Worker stopped")
			return
		case <-ticker.C:
			w.dispatch(ctx, jobs)
		}
	}
}

// dispatch claims a batch of pending submissions and queues them.
func (w *Worker) dispatch(ctx context.Context, jobs chan<- *database.Submission) {
	claimed, err := w.submissionRepo.ClaimPendingSubmissions(ctx, w.cfg.Concurrency)
	if err != nil {
		logrus.Errorf("Failed to claim pending submissions: %v", err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	logrus.Infof("Claimed %d pending submissions", len(claimed))
	for _, submission := range claimed {
		select {
		case <-ctx.Done():
			return
		case jobs <- submission:
		}
	}
}

// ProcessOnce drains the current pending queue synchronously. Used by
// the process command for one-shot runs.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	for {
		claimed, err := w.submissionRepo.ClaimPendingSubmissions(ctx, w.cfg.Concurrency)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		for _, submission := range claimed {
			if err := w.processor.ProcessSubmission(ctx, submission); err != nil {
				logrus.Errorf("Failed to process submission %s: %v", submission.ID, err)
			}
		}
	}
}

// staleProcessingAge is how long a submission may sit in processing
// before the sweep assumes its worker died and returns it to pending.
const staleProcessingAge = time.Hour

// Sweep reclaims stale processing submissions and then drains the
// pending queue.
func (w *Worker) Sweep(ctx context.Context) error {
	reclaimed, err := w.submissionRepo.ReclaimStaleSubmissions(ctx, time.Now().Add(-staleProcessingAge))
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logrus.Warnf("Reclaimed %d stale processing submissions", reclaimed)
	}

	return w.ProcessOnce(ctx)
}

// ScheduleMaintenance registers recurring maintenance on a cron
// schedule when one is configured. Returns the started scheduler, or
// nil when no schedule is set.
func ScheduleMaintenance(cfg *config.WorkerConfig, w *Worker) *cron.Cron {
	if cfg.CronSchedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.CronSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()

		logrus.Info("Starting scheduled queue sweep...")
		if err := w.Sweep(ctx); err != nil {
			logrus.Errorf("Scheduled queue sweep failed: %v", err)
			return
		}
		logrus.Info("Scheduled queue sweep completed")
	})
	if err != nil {
		logrus.Errorf("Failed to schedule queue sweep: %v", err)
		return nil
	}

	c.Start()
	logrus.Infof("Scheduled queue sweep with cron expression: %s", cfg.CronSchedule)
	return c
}
