package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"liquidation-alerts/internal/monitor"
	"liquidation-alerts/internal/scheduler"
	"liquidation-alerts/internal/storage"
)

// CycleRunner runs one monitoring cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (monitor.CycleSummary, error)
}

// Service ties the scheduler, the cycle runner, and audit persistence
// together.
type Service struct {
	scheduler *scheduler.Scheduler
	runner    CycleRunner
	store     storage.CycleStore
	locker    storage.AdvisoryLocker
	lockKey   int64
	simulated bool
	logger    zerolog.Logger
}

// Options carry cross-cutting service settings.
type Options struct {
	AdvisoryLockKey int64
	Simulated       bool
}

// New constructs the monitoring service. store may be nil; persistence is
// then disabled. When the store also implements AdvisoryLocker, cycles are
// serialized across replicas through postgres.
func New(sched *scheduler.Scheduler, runner CycleRunner, store storage.CycleStore, opts Options, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		runner:    runner,
		store:     store,
		locker:    locker,
		lockKey:   opts.AdvisoryLockKey,
		simulated: opts.Simulated,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Run begins the recurring cycle loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle executes one scheduled cycle. A cycle already running in
// another replica (advisory lock held) or in this process is skipped, not
// queued.
func (s *Service) ProcessCycle(ctx context.Context, start time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("cycle_start", start).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.ExecuteCycle(ctx)
	if errors.Is(err, monitor.ErrCycleRunning) {
		s.logger.Warn().Time("cycle_start", start).Msg("previous cycle still running, skipping")
		return nil
	}
	return err
}

// ExecuteCycle runs the cycle and records its outcome. The summary is
// returned even when discovery fails so callers can surface the failure.
func (s *Service) ExecuteCycle(ctx context.Context) (monitor.CycleSummary, error) {
	started := time.Now().UTC()
	summary, err := s.runner.RunCycle(ctx)
	if err != nil {
		if !errors.Is(err, monitor.ErrCycleRunning) {
			s.recordFailure(ctx, started, err)
		}
		return summary, err
	}

	s.recordSummary(ctx, summary)
	return summary, nil
}

func (s *Service) recordSummary(ctx context.Context, summary monitor.CycleSummary) {
	if s.store == nil {
		return
	}

	cycleID, err := s.store.InsertCycle(ctx, storage.CycleRecord{
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Processed:  summary.Processed,
		Alerted:    summary.Alerted,
		Dispatched: summary.Dispatched,
		Failed:     summary.Failed,
		Simulated:  s.simulated,
		Status:     "completed",
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to persist cycle record")
		return
	}

	dispatches := make([]storage.DispatchRecord, 0, len(summary.Results))
	for _, result := range summary.Results {
		dispatches = append(dispatches, storage.DispatchRecord{
			Subscriber:       result.Subscriber,
			Alerted:          result.Alerted,
			Dispatched:       result.Dispatched,
			PercentRemaining: result.PercentRemaining,
			TxHash:           optional(result.TxHash),
			ContentRef:       optional(result.ContentRef),
			Error:            optional(result.Error),
			ErrorKind:        optional(result.ErrorKind),
		})
	}
	if err := s.store.InsertDispatches(ctx, cycleID, dispatches); err != nil {
		s.logger.Error().Err(err).Int64("cycle_id", cycleID).Msg("failed to persist dispatch records")
	}
}

func (s *Service) recordFailure(ctx context.Context, started time.Time, cycleErr error) {
	if s.store == nil {
		return
	}

	msg := cycleErr.Error()
	_, err := s.store.InsertCycle(ctx, storage.CycleRecord{
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Simulated:  s.simulated,
		Status:     "discovery_failed",
		Error:      &msg,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to persist failed cycle record")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
