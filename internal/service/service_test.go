package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"liquidation-alerts/internal/monitor"
	"liquidation-alerts/internal/storage"
)

type fakeRunner struct {
	summary monitor.CycleSummary
	err     error
	calls   int
}

func (f *fakeRunner) RunCycle(_ context.Context) (monitor.CycleSummary, error) {
	f.calls++
	return f.summary, f.err
}

type fakeStore struct {
	cycles     []storage.CycleRecord
	dispatches []storage.DispatchRecord
}

func (f *fakeStore) InsertCycle(_ context.Context, cycle storage.CycleRecord) (int64, error) {
	f.cycles = append(f.cycles, cycle)
	return int64(len(f.cycles)), nil
}

func (f *fakeStore) InsertDispatches(_ context.Context, _ int64, dispatches []storage.DispatchRecord) error {
	f.dispatches = append(f.dispatches, dispatches...)
	return nil
}

func (f *fakeStore) ListRecentCycles(_ context.Context, _ int) ([]storage.CycleRecord, error) {
	return f.cycles, nil
}

func (f *fakeStore) ListCyclesBetween(_ context.Context, _, _ time.Time) ([]storage.CycleRecord, error) {
	return f.cycles, nil
}

func (f *fakeStore) ListDispatchesForCycle(_ context.Context, _ int64) ([]storage.DispatchRecord, error) {
	return f.dispatches, nil
}

func (f *fakeStore) CountCycles(_ context.Context) (int64, error) {
	return int64(len(f.cycles)), nil
}

type lockedStore struct {
	fakeStore
	acquired bool
}

func (l *lockedStore) TryAdvisoryLock(_ context.Context, _ int64) (func(), bool, error) {
	if !l.acquired {
		return nil, false, nil
	}
	return func() {}, true, nil
}

func TestExecuteCycleRecordsSummary(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{
		summary: monitor.CycleSummary{
			StartedAt:  time.Now().UTC(),
			FinishedAt: time.Now().UTC(),
			Processed:  2,
			Alerted:    1,
			Dispatched: 1,
			Results: []monitor.SubscriberResult{
				{Subscriber: "0x01", Alerted: true, Dispatched: true, TxHash: "0xaa", ContentRef: "QmA"},
				{Subscriber: "0x02"},
			},
		},
	}

	svc := New(nil, runner, store, Options{}, zerolog.Nop())
	summary, err := svc.ExecuteCycle(context.Background())
	if err != nil {
		t.Fatalf("ExecuteCycle failed: %v", err)
	}
	if summary.Processed != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if len(store.cycles) != 1 {
		t.Fatalf("expected one cycle record, got %d", len(store.cycles))
	}
	if store.cycles[0].Status != "completed" {
		t.Fatalf("unexpected cycle status: %q", store.cycles[0].Status)
	}
	if len(store.dispatches) != 2 {
		t.Fatalf("expected two dispatch records, got %d", len(store.dispatches))
	}
	if store.dispatches[0].TxHash == nil || *store.dispatches[0].TxHash != "0xaa" {
		t.Fatalf("tx hash should persist: %+v", store.dispatches[0])
	}
	if store.dispatches[1].TxHash != nil {
		t.Fatal("empty tx hash should persist as null")
	}
}

func TestExecuteCycleRecordsDiscoveryFailure(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{err: &monitor.DiscoveryError{Err: errors.New("rpc down")}}

	svc := New(nil, runner, store, Options{}, zerolog.Nop())
	if _, err := svc.ExecuteCycle(context.Background()); err == nil {
		t.Fatal("discovery failure should surface")
	}

	if len(store.cycles) != 1 {
		t.Fatalf("expected one failure record, got %d", len(store.cycles))
	}
	if store.cycles[0].Status != "discovery_failed" {
		t.Fatalf("unexpected status: %q", store.cycles[0].Status)
	}
	if store.cycles[0].Error == nil {
		t.Fatal("failure record should carry the error message")
	}
}

func TestExecuteCycleSkipsRecordWhenAlreadyRunning(t *testing.T) {
	store := &fakeStore{}
	runner := &fakeRunner{err: monitor.ErrCycleRunning}

	svc := New(nil, runner, store, Options{}, zerolog.Nop())
	if _, err := svc.ExecuteCycle(context.Background()); !errors.Is(err, monitor.ErrCycleRunning) {
		t.Fatalf("expected ErrCycleRunning, got %v", err)
	}

	if len(store.cycles) != 0 {
		t.Fatal("a skipped cycle must not be recorded")
	}
}

func TestProcessCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	store := &lockedStore{acquired: false}
	runner := &fakeRunner{}

	svc := New(nil, runner, store, Options{AdvisoryLockKey: 42}, zerolog.Nop())
	if err := svc.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("ProcessCycle should skip quietly: %v", err)
	}

	if runner.calls != 0 {
		t.Fatal("runner must not execute while the advisory lock is held elsewhere")
	}
}

func TestProcessCycleRunsWithLock(t *testing.T) {
	store := &lockedStore{acquired: true}
	runner := &fakeRunner{summary: monitor.CycleSummary{Processed: 1}}

	svc := New(nil, runner, store, Options{AdvisoryLockKey: 42}, zerolog.Nop())
	if err := svc.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("ProcessCycle failed: %v", err)
	}

	if runner.calls != 1 {
		t.Fatalf("runner should execute once, ran %d times", runner.calls)
	}
}
