// Package scheduler runs the periodic follow-up digest job.
package scheduler

import (
	"context"
	"errors"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/go-co-op/gocron"

	"github.com/g3/tornado/internal/app"
)

// DigestSender is the service surface the job calls.
type DigestSender interface {
	SendDigests(context.Context) (app.DigestRun, error)
}

// DigestJob sends follow-up digests on a fixed interval.
type DigestJob struct {
	sender   DigestSender
	logger   *charmLog.Logger
	interval time.Duration
	timeout  time.Duration
	sched    *gocron.Scheduler
}

// NewDigestJob constructs a job. Runs never overlap.
func NewDigestJob(sender DigestSender, interval time.Duration, logger *charmLog.Logger) (*DigestJob, error) {
	if sender == nil {
		return nil, errors.New("digest sender is required")
	}
	if interval <= 0 {
		return nil, errors.New("digest interval must be positive")
	}
	if logger == nil {
		logger = charmLog.Default()
	}
	sched := gocron.NewScheduler(time.UTC)
	sched.SingletonModeAll()
	return &DigestJob{
		sender:   sender,
		logger:   logger,
		interval: interval,
		timeout:  5 * time.Minute,
		sched:    sched,
	}, nil
}

// Start schedules the job and returns immediately. The first run fires at once.
// Stop is called when ctx ends.
func (j *DigestJob) Start(ctx context.Context) error {
	if _, err := j.sched.Every(j.interval).Do(func() {
		j.RunOnce(ctx)
	}); err != nil {
		return err
	}
	j.sched.StartAsync()
	j.logger.Info("digest job scheduled", "interval", j.interval.String())
	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop halts the scheduler.
func (j *DigestJob) Stop() {
	if j.sched.IsRunning() {
		j.sched.Stop()
	}
}

// RunOnce sends one round of digests and logs the outcome.
func (j *DigestJob) RunOnce(ctx context.Context) app.DigestRun {
	if ctx.Err() != nil {
		return app.DigestRun{}
	}
	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	start := time.Now()
	run, err := j.sender.SendDigests(runCtx)
	if err != nil {
		j.logger.Error("digest run failed", "err", err, "sent", run.Sent, "digests", run.Digests)
		return run
	}
	j.logger.Info("digest run complete",
		"digests", run.Digests,
		"sent", run.Sent,
		"skipped", run.Skipped,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return run
}
