package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"liquidation-alerts/internal/chain"
)

// ChannelSource discovers subscribers from the channel's append-only
// Subscribe event log, starting at the channel's recorded start block.
type ChannelSource struct {
	contract *chain.Contract
	channel  common.Address
	logger   zerolog.Logger
}

// NewChannelSource binds the channel contract and the channel address whose
// subscriptions are enumerated.
func NewChannelSource(contract *chain.Contract, channel common.Address, logger zerolog.Logger) *ChannelSource {
	return &ChannelSource{
		contract: contract,
		channel:  channel,
		logger:   logger.With().Str("component", "channel_source").Logger(),
	}
}

// Discover reads the channel's start block, then extracts subscriber
// addresses from every Subscribe event up to the chain head. Duplicate
// entries are preserved here; deduplication is the orchestrator's call.
func (s *ChannelSource) Discover(ctx context.Context) ([]common.Address, error) {
	outputs, err := s.contract.Call(ctx, "channels", s.channel)
	if err != nil {
		return nil, fmt.Errorf("read channel info: %w", err)
	}
	if len(outputs) == 0 {
		return nil, errors.New("read channel info: empty response")
	}
	startBlock, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, errors.New("read channel info: unexpected start block type")
	}

	channelTopic := common.BytesToHash(common.LeftPadBytes(s.channel.Bytes(), 32))
	logs, err := s.contract.FilterEvents(ctx, "Subscribe", startBlock.Uint64(), []common.Hash{channelTopic})
	if err != nil {
		return nil, fmt.Errorf("query subscription log: %w", err)
	}

	subscribers := make([]common.Address, 0, len(logs))
	for _, entry := range logs {
		// Subscribe(channel indexed, user indexed): user is topic 2.
		if len(entry.Topics) < 3 {
			s.logger.Warn().Str("tx", entry.TxHash.Hex()).Msg("subscribe event missing user topic, skipping")
			continue
		}
		subscribers = append(subscribers, common.BytesToAddress(entry.Topics[2].Bytes()))
	}

	s.logger.Debug().
		Uint64("start_block", startBlock.Uint64()).
		Int("events", len(logs)).
		Msg("subscriber discovery complete")
	return subscribers, nil
}

var _ SubscriberSource = (*ChannelSource)(nil)
