package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"liquidation-alerts/internal/market"
	"liquidation-alerts/internal/notify"
	"liquidation-alerts/internal/payload"
	"liquidation-alerts/internal/risk"
)

// ErrCycleRunning is returned when a cycle is requested while another is
// still in flight. Cycles for one channel never interleave.
var ErrCycleRunning = errors.New("monitor: cycle already running")

// SubscriberSource enumerates the channel's subscriber set.
type SubscriberSource interface {
	Discover(ctx context.Context) ([]common.Address, error)
}

// LiquidityAggregator computes one subscriber's aggregate liquidity.
type LiquidityAggregator interface {
	Aggregate(ctx context.Context, subscriber common.Address) (market.AggregateLiquidity, error)
}

// RiskEvaluator applies the alert threshold policy.
type RiskEvaluator interface {
	Evaluate(agg market.AggregateLiquidity) risk.Decision
}

// NameResolver resolves a subscriber's display name. Optional; failures fall
// back to the abbreviated address and never fail the pipeline.
type NameResolver interface {
	ResolveName(ctx context.Context, addr common.Address) (string, error)
}

// AlertDispatcher publishes and submits one alert.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, subscriber common.Address, notificationType int, alertPayload interface{}) notify.Result
}

// Options tune the orchestrator. RunLock, when set, is the shared
// serialization point for all monitors driving the same channel; cycles from
// different monitors (live and simulate) then never interleave.
type Options struct {
	Workers           int
	CycleTimeout      time.Duration
	DedupeSubscribers bool
	RunLock           *sync.Mutex
}

// Monitor runs the monitor-and-alert cycle across all subscribers.
type Monitor struct {
	source     SubscriberSource
	aggregator LiquidityAggregator
	evaluator  RiskEvaluator
	resolver   NameResolver
	dispatcher AlertDispatcher
	opts       Options
	logger     zerolog.Logger

	runMux *sync.Mutex
}

// New constructs a Monitor.
func New(source SubscriberSource, aggregator LiquidityAggregator, evaluator RiskEvaluator, resolver NameResolver, dispatcher AlertDispatcher, opts Options, logger zerolog.Logger) *Monitor {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.RunLock == nil {
		opts.RunLock = new(sync.Mutex)
	}
	return &Monitor{
		runMux:     opts.RunLock,
		source:     source,
		aggregator: aggregator,
		evaluator:  evaluator,
		resolver:   resolver,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger.With().Str("component", "monitor").Logger(),
	}
}

// RunCycle discovers the subscriber set and runs the per-subscriber pipeline
// across it. Discovery failure aborts the cycle; every other failure is
// isolated into that subscriber's result. Returns ErrCycleRunning if a cycle
// is already in flight.
func (m *Monitor) RunCycle(ctx context.Context) (CycleSummary, error) {
	if !m.runMux.TryLock() {
		return CycleSummary{}, ErrCycleRunning
	}
	defer m.runMux.Unlock()

	started := time.Now().UTC()
	if m.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.CycleTimeout)
		defer cancel()
	}

	subscribers, err := m.source.Discover(ctx)
	if err != nil {
		cyclesTotal.WithLabelValues("discovery_failed").Inc()
		return CycleSummary{}, &DiscoveryError{Err: err}
	}
	if m.opts.DedupeSubscribers {
		subscribers = dedupe(subscribers)
	}

	m.logger.Info().Int("subscribers", len(subscribers)).Msg("cycle started")

	results := make([]SubscriberResult, len(subscribers))
	group := new(errgroup.Group)
	group.SetLimit(m.opts.Workers)
	for i, subscriber := range subscribers {
		group.Go(func() error {
			results[i] = m.processSubscriber(ctx, subscriber)
			return nil
		})
	}
	// Pipeline errors are captured per result; the join never fails.
	_ = group.Wait()

	summary := summarize(started, time.Now().UTC(), results)
	observeCycle(summary)
	m.logger.Info().
		Int("processed", summary.Processed).
		Int("alerted", summary.Alerted).
		Int("dispatched", summary.Dispatched).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("cycle completed")
	return summary, nil
}

// processSubscriber runs aggregation, evaluation, and (when warranted)
// dispatch for one subscriber. Never panics the cycle; all failures land in
// the returned result.
func (m *Monitor) processSubscriber(ctx context.Context, subscriber common.Address) SubscriberResult {
	result := SubscriberResult{Subscriber: subscriber.Hex()}

	agg, err := m.aggregator.Aggregate(ctx, subscriber)
	if err != nil {
		result.Error = err.Error()
		result.ErrorKind = classifyError(err)
		return result
	}

	decision := m.evaluator.Evaluate(agg)
	result.PercentRemaining = decision.PercentRemaining
	if !decision.ShouldAlert {
		return result
	}
	result.Alerted = true

	alertPayload := payload.Build(m.displayName(ctx, subscriber), decision)
	dispatch := m.dispatcher.Dispatch(ctx, subscriber, alertPayload.Data.Type, alertPayload)
	result.ContentRef = dispatch.ContentRef
	if dispatch.Err != nil {
		result.Error = dispatch.Err.Error()
		result.ErrorKind = classifyError(dispatch.Err)
		return result
	}

	result.Dispatched = true
	result.TxHash = dispatch.TxHash
	return result
}

func (m *Monitor) displayName(ctx context.Context, subscriber common.Address) string {
	if m.resolver != nil {
		if name, err := m.resolver.ResolveName(ctx, subscriber); err == nil {
			return name
		} else {
			m.logger.Debug().Err(err).Str("subscriber", subscriber.Hex()).Msg("name resolution failed, using address")
		}
	}
	return shortAddress(subscriber)
}

func dedupe(addrs []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(addrs))
	out := addrs[:0]
	for _, addr := range addrs {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func shortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}
