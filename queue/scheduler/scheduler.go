// Package scheduler drives the worker loop on a fixed tick, as an
// alternative trigger to the HTTP worker route - both call the same
// worker.Run and therefore share its claim-primitive synchronization (spec
// §4.E).
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/caasmo/dripsched/queue/worker"
)

// Scheduler is a Daemon: Start launches its ticker goroutine, Stop asks it
// to finish the in-flight tick (if any) and exit.
type Scheduler struct {
	worker    *worker.Worker
	interval  time.Duration
	batchSize int

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownDone chan struct{}
}

// New creates a scheduler that calls w.Run(ctx, batchSize) every interval.
func New(w *worker.Worker, interval time.Duration, batchSize int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		worker:       w,
		interval:     interval,
		batchSize:    batchSize,
		ctx:          ctx,
		cancel:       cancel,
		shutdownDone: make(chan struct{}),
	}
}

func (s *Scheduler) Name() string { return "scheduler" }

// Start begins the ticker loop in its own goroutine. Unlike the teacher's
// job scheduler, ticks are never run concurrently with each other - a tick
// that is still running when the next one fires is simply skipped, since
// worker.Run's own within-batch processing is already strictly sequential
// and two overlapping ticks would just contend on the same claim query.
func (s *Scheduler) Start() error {
	go func() {
		slog.Info("scheduler: starting", "interval", s.interval, "batch_size", s.batchSize)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				slog.Info("scheduler: shutdown signal received")
				close(s.shutdownDone)
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
	return nil
}

func (s *Scheduler) tick() {
	summary, err := s.worker.Run(s.ctx, s.batchSize)
	if err != nil {
		slog.Error("scheduler: tick failed", "err", err)
		return
	}
	if summary.Claimed > 0 {
		slog.Info("scheduler: tick complete",
			"claimed", summary.Claimed, "sent", summary.Sent,
			"failed", summary.Failed, "skipped", summary.Skipped)
	}
}

// Stop signals the ticker goroutine to exit and waits for it, or for ctx to
// expire first.
func (s *Scheduler) Stop(ctx context.Context) error {
	slog.Info("scheduler: stopping")
	s.cancel()
	select {
	case <-s.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
