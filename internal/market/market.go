package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Snapshot carries the raw per-market position values for one account.
type Snapshot struct {
	BalanceRaw      *big.Int
	ExchangeRateRaw *big.Int
}

// AggregateLiquidity is the per-subscriber result of one aggregation pass.
// Collateral is the risk-adjusted collateral value summed across all entered
// markets; Remaining is the protocol's own reported account liquidity. Both
// are expressed in human-scaled units.
type AggregateLiquidity struct {
	Subscriber common.Address
	Collateral decimal.Decimal
	Remaining  decimal.Decimal
}

// PositionReader is the read boundary against the lending protocol.
type PositionReader interface {
	AccountLiquidity(ctx context.Context, account common.Address) (*big.Int, error)
	EnteredMarkets(ctx context.Context, account common.Address) ([]common.Address, error)
	AccountSnapshot(ctx context.Context, market, account common.Address) (Snapshot, error)
	UnderlyingPrice(ctx context.Context, market common.Address) (*big.Int, error)
	CollateralFactor(ctx context.Context, market common.Address) (*big.Int, error)
}

// ReadError marks a failed chain read during aggregation. A single failed
// market read fails the whole subscriber, not just that market.
type ReadError struct {
	Op     string
	Market common.Address
	Err    error
}

func (e *ReadError) Error() string {
	if e.Market == (common.Address{}) {
		return fmt.Sprintf("market read %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("market read %s (%s): %v", e.Op, e.Market.Hex(), e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
