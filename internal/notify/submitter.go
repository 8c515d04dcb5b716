package notify

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"liquidation-alerts/internal/chain"
)

// storageTypeIPFS tells the channel contract the storage pointer is an IPFS
// content identifier.
const storageTypeIPFS = 1

// ChannelSubmitter submits sendMessage transactions to the notification
// channel contract through the shared signing wallet.
type ChannelSubmitter struct {
	contract       *chain.Contract
	wallet         *chain.Wallet
	confirmTimeout time.Duration
}

// NewChannelSubmitter binds the channel contract and wallet.
func NewChannelSubmitter(contract *chain.Contract, wallet *chain.Wallet, confirmTimeout time.Duration) *ChannelSubmitter {
	return &ChannelSubmitter{contract: contract, wallet: wallet, confirmTimeout: confirmTimeout}
}

// SendMessage records the notification on chain and waits for one
// confirmation. Irreversible and fee-bearing once confirmed.
func (s *ChannelSubmitter) SendMessage(ctx context.Context, recipient common.Address, notificationType int, storagePointer string) (common.Hash, error) {
	calldata, err := s.contract.Pack("sendMessage", recipient, big.NewInt(int64(notificationType)), storagePointer, big.NewInt(storageTypeIPFS))
	if err != nil {
		return common.Hash{}, err
	}

	receipt, err := s.wallet.Submit(ctx, s.contract.Address, calldata, s.confirmTimeout)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// DryRunSubmitter satisfies MessageSubmitter without touching the chain.
// Used by simulate mode, which must exercise aggregation and payload
// building but never pay for a transaction.
type DryRunSubmitter struct {
	logger zerolog.Logger
}

// NewDryRunSubmitter constructs the simulate-mode submitter.
func NewDryRunSubmitter(logger zerolog.Logger) *DryRunSubmitter {
	return &DryRunSubmitter{logger: logger.With().Str("component", "dryrun_submitter").Logger()}
}

// SendMessage logs what would have been submitted and returns a zero hash.
func (s *DryRunSubmitter) SendMessage(ctx context.Context, recipient common.Address, notificationType int, storagePointer string) (common.Hash, error) {
	s.logger.Info().
		Str("recipient", recipient.Hex()).
		Int("type", notificationType).
		Str("storage_pointer", storagePointer).
		Msg("simulate: skipping on-chain notification")
	return common.Hash{}, nil
}

var (
	_ MessageSubmitter = (*ChannelSubmitter)(nil)
	_ MessageSubmitter = (*DryRunSubmitter)(nil)
)
