package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liquidation-alerts/internal/ipfs"
	"liquidation-alerts/internal/market"
	"liquidation-alerts/internal/notify"
)

// Error kinds reported in subscriber results.
const (
	KindRead     = "read"
	KindPublish  = "publish"
	KindDispatch = "dispatch"
	KindTimeout  = "timeout"
	KindInternal = "internal"
)

// DiscoveryError marks a failed subscriber enumeration. Fatal for the cycle.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string { return fmt.Sprintf("subscriber discovery: %v", e.Err) }
func (e *DiscoveryError) Unwrap() error { return e.Err }

// SubscriberResult is the terminal per-subscriber record of one cycle.
type SubscriberResult struct {
	Subscriber       string `json:"subscriber"`
	Alerted          bool   `json:"alerted"`
	Dispatched       bool   `json:"dispatched"`
	PercentRemaining int64  `json:"percent_remaining"`
	TxHash           string `json:"tx_hash,omitempty"`
	ContentRef       string `json:"content_ref,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorKind        string `json:"error_kind,omitempty"`
}

// Failed reports whether the subscriber's pipeline ended in an error.
func (r SubscriberResult) Failed() bool { return r.Error != "" }

// CycleSummary aggregates one cycle's outcome.
type CycleSummary struct {
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Processed  int                `json:"processed"`
	Alerted    int                `json:"alerted"`
	Dispatched int                `json:"dispatched"`
	Failed     int                `json:"failed"`
	Results    []SubscriberResult `json:"results"`
}

func summarize(started, finished time.Time, results []SubscriberResult) CycleSummary {
	summary := CycleSummary{
		StartedAt:  started,
		FinishedAt: finished,
		Processed:  len(results),
		Results:    results,
	}
	for _, result := range results {
		if result.Alerted {
			summary.Alerted++
		}
		if result.Dispatched {
			summary.Dispatched++
		}
		if result.Failed() {
			summary.Failed++
		}
	}
	return summary
}

// classifyError maps a pipeline failure to its reported kind. The deadline
// check runs first: a read or publish aborted by the cycle timeout wraps
// DeadlineExceeded and must be reported as a timeout, not as its carrier.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var readErr *market.ReadError
	if errors.As(err, &readErr) {
		return KindRead
	}
	var publishErr *ipfs.PublishError
	if errors.As(err, &publishErr) {
		return KindPublish
	}
	var dispatchErr *notify.DispatchError
	if errors.As(err, &dispatchErr) {
		return KindDispatch
	}
	return KindInternal
}
