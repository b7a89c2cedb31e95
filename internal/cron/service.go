package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/metrics"
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
}

// Service runs every registered job on its own cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
	}, nil
}

// Run starts one loop per job and blocks until the context is canceled.
// Each job runs once immediately, then on every tick of its interval.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	jobs := s.registry.Jobs()
	if len(jobs) == 0 {
		s.logg.Warn(ctx, "no cron jobs enabled")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		lock, err := s.locks(job.Name())
		if err != nil {
			return fmt.Errorf("lock for %s: %w", job.Name(), err)
		}
		group.Go(func() error {
			return s.loop(groupCtx, job, lock)
		})
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		s.logg.Info(ctx, "cron service context canceled")
	}
	return err
}

func (s *Service) loop(ctx context.Context, job Job, lock Lock) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	s.runLocked(jobCtx, job, lock)

	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runLocked(jobCtx, job, lock)
		}
	}
}

// runLocked skips the sweep when another replica holds the job's lock.
func (s *Service) runLocked(ctx context.Context, job Job, lock Lock) {
	locked, err := lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "lock acquire failed", err)
		return
	}
	if !locked {
		s.logg.Info(ctx, "another worker is running this job; skipping")
		s.metrics.ObserveRun(job.Name(), metrics.JobOutcomeSkipped, 0)
		return
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()
	s.runJob(ctx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.ObserveRun(job.Name(), metrics.JobOutcomeFailure, duration)
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.ObserveRun(job.Name(), metrics.JobOutcomeSuccess, duration)
}
