package market

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Power-of-ten scaling is done with exponent shifts, never Div: Div rounds to
// DivisionPrecision and per-market contributions sit far below 1e-16.
var (
	downscale1e12 = decimal.New(1, -12)
	hundred       = decimal.NewFromInt(100)
)

// Aggregator sums a subscriber's risk-adjusted collateral value across all
// entered markets and reads the protocol's remaining-liquidity figure.
type Aggregator struct {
	reader PositionReader
	logger zerolog.Logger
}

// NewAggregator constructs an Aggregator over a position reader.
func NewAggregator(reader PositionReader, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		reader: reader,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate computes AggregateLiquidity for one subscriber. Markets are
// fetched concurrently; the first failed read cancels the remaining fetches
// and fails the subscriber.
func (a *Aggregator) Aggregate(ctx context.Context, subscriber common.Address) (AggregateLiquidity, error) {
	liquidityRaw, err := a.reader.AccountLiquidity(ctx, subscriber)
	if err != nil {
		return AggregateLiquidity{}, err
	}
	remaining := decimal.NewFromBigInt(liquidityRaw, -18)

	entered, err := a.reader.EnteredMarkets(ctx, subscriber)
	if err != nil {
		return AggregateLiquidity{}, err
	}

	contributions := make([]decimal.Decimal, len(entered))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, marketAddr := range entered {
		group.Go(func() error {
			contribution, err := a.marketContribution(groupCtx, marketAddr, subscriber)
			if err != nil {
				return err
			}
			contributions[i] = contribution
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return AggregateLiquidity{}, err
	}

	collateral := decimal.Zero
	for _, contribution := range contributions {
		collateral = collateral.Add(contribution)
	}

	a.logger.Debug().
		Str("subscriber", subscriber.Hex()).
		Int("markets", len(entered)).
		Str("collateral", collateral.String()).
		Str("remaining", remaining.String()).
		Msg("aggregated subscriber liquidity")

	return AggregateLiquidity{
		Subscriber: subscriber,
		Collateral: collateral,
		Remaining:  remaining,
	}, nil
}

// marketContribution computes one market's risk-adjusted collateral value.
// Each raw value is normalized by its own fixed-point scale before the
// multiplication; the order matters for parity with historical alerts:
//
//	balance/1e8 * rate/1e18 * price/1e18 * (factor/1e18 * 100), then / 1e12
func (a *Aggregator) marketContribution(ctx context.Context, marketAddr, subscriber common.Address) (decimal.Decimal, error) {
	snapshot, err := a.reader.AccountSnapshot(ctx, marketAddr, subscriber)
	if err != nil {
		return decimal.Decimal{}, err
	}
	priceRaw, err := a.reader.UnderlyingPrice(ctx, marketAddr)
	if err != nil {
		return decimal.Decimal{}, err
	}
	factorRaw, err := a.reader.CollateralFactor(ctx, marketAddr)
	if err != nil {
		return decimal.Decimal{}, err
	}

	balance := decimal.NewFromBigInt(snapshot.BalanceRaw, -8)
	rate := decimal.NewFromBigInt(snapshot.ExchangeRateRaw, -18)
	price := decimal.NewFromBigInt(priceRaw, -18)
	factor := decimal.NewFromBigInt(factorRaw, -18).Mul(hundred)

	return balance.Mul(rate).Mul(price).Mul(factor).Mul(downscale1e12), nil
}
