// Package cron provides cron-based scheduling for periodic server tasks.
//
// A CronTrigger calls a function according to a cron schedule. It is designed to be
// started once and run until the context is cancelled.
//
// Example usage:
//
//	trigger, err := cron.NewCronTrigger("*/5 * * * *", "push store stats", pushStats, logger)
//	if err != nil {
//	    return err
//	}
//	trigger.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()        // Wait for shutdown signal
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Task is the work executed on each tick.
type Task func(ctx context.Context) error

// CronTrigger executes a Task according to a cron schedule.
type CronTrigger struct {
	spec     string
	name     string
	schedule cron.Schedule
	task     Task
	logger   *slog.Logger

	// after is time.After, replaced in tests.
	after func(time.Duration) <-chan time.Time
}

// NewCronTrigger creates a new CronTrigger with the given cron specification.
// The spec follows standard cron format (5 fields: minute, hour, day, month, weekday).
// Returns ErrInvalidCronSpec if the specification cannot be parsed.
func NewCronTrigger(spec, name string, task Task, logger *slog.Logger) (*CronTrigger, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &CronTrigger{
		spec:     spec,
		name:     name,
		schedule: schedule,
		task:     task,
		logger:   logger.With("task", name),
		after:    time.After,
	}, nil
}

// Start launches a goroutine that runs the task according to the cron schedule.
// Returns immediately. The goroutine exits when ctx is cancelled.
func (ct *CronTrigger) Start(ctx context.Context) {
	go ct.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (ct *CronTrigger) NextRun() time.Time {
	return ct.schedule.Next(time.Now())
}

func (ct *CronTrigger) loop(ctx context.Context) {
	for {
		nextRun := ct.schedule.Next(time.Now())
		waitDuration := time.Until(nextRun)

		ct.logger.Debug("waiting for next scheduled run",
			"next_run", nextRun,
			"wait_duration", waitDuration,
		)

		select {
		case <-ctx.Done():
			ct.logger.Info("cron trigger shutting down")
			return
		case <-ct.after(waitDuration):
			ct.execute(ctx)
		}
	}
}

func (ct *CronTrigger) execute(ctx context.Context) {
	ct.logger.Debug("starting scheduled run")

	if err := ct.task(ctx); err != nil {
		ct.logger.Warn("scheduled run completed with error", "error", err)
	} else {
		ct.logger.Debug("scheduled run completed successfully")
	}
}
