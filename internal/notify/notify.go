package notify

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// ContentPublisher uploads a payload to the content store and returns its
// content identifier.
type ContentPublisher interface {
	Publish(ctx context.Context, payload interface{}) (string, error)
}

// MessageSubmitter records an alert on chain for a recipient, referencing a
// stored payload, and waits for confirmation.
type MessageSubmitter interface {
	SendMessage(ctx context.Context, recipient common.Address, notificationType int, storagePointer string) (common.Hash, error)
}

// DispatchError marks a failed on-chain notification submission.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string { return fmt.Sprintf("notification dispatch: %v", e.Err) }
func (e *DispatchError) Unwrap() error { return e.Err }

// Result is the terminal record for one subscriber's dispatch attempt.
type Result struct {
	Subscriber common.Address
	Success    bool
	TxHash     string
	ContentRef string
	Err        error
}

// Dispatcher publishes an alert payload and submits the on-chain
// notification. It performs at most one attempt; retries are owned by the
// next scheduled cycle.
type Dispatcher struct {
	publisher ContentPublisher
	submitter MessageSubmitter
	logger    zerolog.Logger
}

// NewDispatcher wires a publisher and submitter.
func NewDispatcher(publisher ContentPublisher, submitter MessageSubmitter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		submitter: submitter,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch publishes the payload, then submits the notification transaction.
// A publish failure skips the transaction entirely; the paid call is never
// attempted without a stored payload to reference.
func (d *Dispatcher) Dispatch(ctx context.Context, subscriber common.Address, notificationType int, alertPayload interface{}) Result {
	result := Result{Subscriber: subscriber}

	cid, err := d.publisher.Publish(ctx, alertPayload)
	if err != nil {
		d.logger.Error().Err(err).Str("subscriber", subscriber.Hex()).Msg("payload publish failed")
		result.Err = err
		return result
	}
	result.ContentRef = cid

	txHash, err := d.submitter.SendMessage(ctx, subscriber, notificationType, cid)
	if err != nil {
		d.logger.Error().Err(err).Str("subscriber", subscriber.Hex()).Msg("notification submission failed")
		result.Err = &DispatchError{Err: err}
		return result
	}

	result.Success = true
	result.TxHash = txHash.Hex()
	d.logger.Info().
		Str("subscriber", subscriber.Hex()).
		Str("cid", cid).
		Str("tx", result.TxHash).
		Msg("notification dispatched")
	return result
}
