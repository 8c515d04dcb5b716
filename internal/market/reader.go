package market

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"liquidation-alerts/internal/chain"
)

// CompoundReader reads positions from a Compound-style lending protocol:
// a comptroller for account-level views, a price oracle, and one token
// contract per market. The market set comes from configuration instead of
// being rebuilt inline per call.
type CompoundReader struct {
	comptroller *chain.Contract
	oracle      *chain.Contract
	markets     map[common.Address]*chain.Contract
	logger      zerolog.Logger
}

// NewCompoundReader binds the protocol contracts for the configured markets.
func NewCompoundReader(client *chain.Client, comptroller, oracle common.Address, marketAddrs map[common.Address]string, logger zerolog.Logger) *CompoundReader {
	markets := make(map[common.Address]*chain.Contract, len(marketAddrs))
	for addr := range marketAddrs {
		markets[addr] = client.MarketContract(addr)
	}

	return &CompoundReader{
		comptroller: client.ComptrollerContract(comptroller),
		oracle:      client.OracleContract(oracle),
		markets:     markets,
		logger:      logger.With().Str("component", "position_reader").Logger(),
	}
}

// AccountLiquidity returns the protocol-reported remaining liquidity, raw at
// 1e18 scale. The accessor returns (error, liquidity, shortfall).
func (r *CompoundReader) AccountLiquidity(ctx context.Context, account common.Address) (*big.Int, error) {
	outputs, err := r.comptroller.Call(ctx, "getAccountLiquidity", account)
	if err != nil {
		return nil, &ReadError{Op: "getAccountLiquidity", Err: err}
	}
	liquidity, err := bigIntOutput(outputs, 1)
	if err != nil {
		return nil, &ReadError{Op: "getAccountLiquidity", Err: err}
	}
	return liquidity, nil
}

// EnteredMarkets returns the markets the account participates in. Every
// entered market must be present in configuration.
func (r *CompoundReader) EnteredMarkets(ctx context.Context, account common.Address) ([]common.Address, error) {
	outputs, err := r.comptroller.Call(ctx, "getAssetsIn", account)
	if err != nil {
		return nil, &ReadError{Op: "getAssetsIn", Err: err}
	}
	if len(outputs) != 1 {
		return nil, &ReadError{Op: "getAssetsIn", Err: errors.New("unexpected output arity")}
	}
	all, ok := outputs[0].([]common.Address)
	if !ok {
		return nil, &ReadError{Op: "getAssetsIn", Err: errors.New("unexpected output type")}
	}

	return r.configuredMarkets(all)
}

// configuredMarkets verifies a handle exists for every entered market. An
// unconfigured market fails the subscriber: skipping it would understate the
// collateral sum and shrink the alert threshold, suppressing warnings exactly
// when the protocol lists a market ahead of the configuration.
func (r *CompoundReader) configuredMarkets(all []common.Address) ([]common.Address, error) {
	entered := make([]common.Address, 0, len(all))
	for _, addr := range all {
		if _, known := r.markets[addr]; !known {
			r.logger.Error().Str("market", addr.Hex()).Msg("entered market missing from configuration")
			return nil, &ReadError{Op: "getAssetsIn", Market: addr, Err: errors.New("market not configured")}
		}
		entered = append(entered, addr)
	}
	return entered, nil
}

// AccountSnapshot returns the raw deposited balance (1e8) and exchange rate
// (1e18) for one market. The accessor returns (error, balance, borrow, rate).
func (r *CompoundReader) AccountSnapshot(ctx context.Context, market, account common.Address) (Snapshot, error) {
	contract, ok := r.markets[market]
	if !ok {
		return Snapshot{}, &ReadError{Op: "getAccountSnapshot", Market: market, Err: errors.New("market not configured")}
	}

	outputs, err := contract.Call(ctx, "getAccountSnapshot", account)
	if err != nil {
		return Snapshot{}, &ReadError{Op: "getAccountSnapshot", Market: market, Err: err}
	}

	balance, err := bigIntOutput(outputs, 1)
	if err != nil {
		return Snapshot{}, &ReadError{Op: "getAccountSnapshot", Market: market, Err: err}
	}
	rate, err := bigIntOutput(outputs, 3)
	if err != nil {
		return Snapshot{}, &ReadError{Op: "getAccountSnapshot", Market: market, Err: err}
	}
	return Snapshot{BalanceRaw: balance, ExchangeRateRaw: rate}, nil
}

// UnderlyingPrice returns the oracle price for a market's underlying asset,
// raw at 1e18 scale.
func (r *CompoundReader) UnderlyingPrice(ctx context.Context, market common.Address) (*big.Int, error) {
	outputs, err := r.oracle.Call(ctx, "getUnderlyingPrice", market)
	if err != nil {
		return nil, &ReadError{Op: "getUnderlyingPrice", Market: market, Err: err}
	}
	price, err := bigIntOutput(outputs, 0)
	if err != nil {
		return nil, &ReadError{Op: "getUnderlyingPrice", Market: market, Err: err}
	}
	return price, nil
}

// CollateralFactor returns the market's collateral factor mantissa, raw at
// 1e18 scale. The accessor returns (isListed, collateralFactorMantissa).
func (r *CompoundReader) CollateralFactor(ctx context.Context, market common.Address) (*big.Int, error) {
	outputs, err := r.comptroller.Call(ctx, "markets", market)
	if err != nil {
		return nil, &ReadError{Op: "markets", Market: market, Err: err}
	}
	factor, err := bigIntOutput(outputs, 1)
	if err != nil {
		return nil, &ReadError{Op: "markets", Market: market, Err: err}
	}
	return factor, nil
}

func bigIntOutput(outputs []interface{}, index int) (*big.Int, error) {
	if index >= len(outputs) {
		return nil, fmt.Errorf("output index %d out of range (%d outputs)", index, len(outputs))
	}
	value, ok := outputs[index].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d is not a uint256", index)
	}
	return value, nil
}

var _ PositionReader = (*CompoundReader)(nil)
