// Package main provides the dmflow sweeper, which periodically resumes
// executions parked on elapsed delay timers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/dmflow/dmflow/pkg/engine"
	"github.com/dmflow/dmflow/pkg/messaging"
	"github.com/dmflow/dmflow/pkg/persistence"
	"github.com/dmflow/dmflow/pkg/tenant"
)

type Sweeper struct {
	logger *slog.Logger
	engine *engine.Engine
	cron   *cron.Cron
}

func NewSweeper(
	persistence persistence.Persistence,
	accounts *tenant.Loader,
	messenger messaging.Messenger,
	generator messaging.Generator,
	batchSize int,
	logger *slog.Logger,
) *Sweeper {
	eng := engine.New(engine.Config{
		Persistence:    persistence,
		Messenger:      messenger,
		Generator:      generator,
		Accounts:       accounts,
		Logger:         logger,
		SweepBatchSize: batchSize,
	})

	return &Sweeper{
		logger: logger.With("module", "sweeper"),
		engine: eng,
	}
}

// Run registers the sweep on the given cron expression and blocks until a
// shutdown signal arrives. Overlapping sweeps are skipped, not queued.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Sweeper started", "schedule", schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	s.logger.InfoContext(ctx, "Shutting down sweeper...")

	stopped := s.cron.Stop()
	<-stopped.Done()

	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	processed, err := s.engine.ProcessScheduledExecutions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Sweep failed", "error", err)

		return
	}

	if processed > 0 {
		s.logger.InfoContext(ctx, "Sweep resumed executions", "processed", processed)
	} else {
		s.logger.DebugContext(ctx, "Sweep found no due executions")
	}
}
