package market

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type stubReader struct {
	liquidity *big.Int
	entered   []common.Address
	snapshots map[common.Address]Snapshot
	prices    map[common.Address]*big.Int
	factors   map[common.Address]*big.Int
	failOn    common.Address
}

func (s *stubReader) AccountLiquidity(_ context.Context, _ common.Address) (*big.Int, error) {
	return s.liquidity, nil
}

func (s *stubReader) EnteredMarkets(_ context.Context, _ common.Address) ([]common.Address, error) {
	return s.entered, nil
}

func (s *stubReader) AccountSnapshot(_ context.Context, market, _ common.Address) (Snapshot, error) {
	if market == s.failOn {
		return Snapshot{}, &ReadError{Op: "getAccountSnapshot", Market: market, Err: errors.New("rpc unavailable")}
	}
	return s.snapshots[market], nil
}

func (s *stubReader) UnderlyingPrice(_ context.Context, market common.Address) (*big.Int, error) {
	return s.prices[market], nil
}

func (s *stubReader) CollateralFactor(_ context.Context, market common.Address) (*big.Int, error) {
	return s.factors[market], nil
}

func TestAggregateSingleMarket(t *testing.T) {
	marketAddr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	reader := &stubReader{
		liquidity: big.NewInt(500000000000000000),
		entered:   []common.Address{marketAddr},
		snapshots: map[common.Address]Snapshot{
			marketAddr: {
				BalanceRaw:      big.NewInt(1000),
				ExchangeRateRaw: big.NewInt(20000000000000000),
			},
		},
		prices: map[common.Address]*big.Int{
			marketAddr: big.NewInt(1000000000000000000),
		},
		factors: map[common.Address]*big.Int{
			marketAddr: big.NewInt(750000000000000000),
		},
	}

	agg := NewAggregator(reader, zerolog.Nop())
	result, err := agg.Aggregate(context.Background(), common.HexToAddress("0xabc0000000000000000000000000000000000000"))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	// balance/1e8 * rate/1e18 * price/1e18 * (factor/1e18 * 100) / 1e12
	want := decimal.RequireFromString("0.000000000000000015")
	if !result.Collateral.Equal(want) {
		t.Fatalf("collateral mismatch: got %s, want %s", result.Collateral, want)
	}
	if !result.Remaining.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("remaining mismatch: got %s", result.Remaining)
	}
}

func TestAggregateSumsMarkets(t *testing.T) {
	marketA := common.HexToAddress("0x0000000000000000000000000000000000000001")
	marketB := common.HexToAddress("0x0000000000000000000000000000000000000002")
	snapshot := Snapshot{
		BalanceRaw:      big.NewInt(100000000),
		ExchangeRateRaw: big.NewInt(1000000000000000000),
	}
	reader := &stubReader{
		liquidity: big.NewInt(0),
		entered:   []common.Address{marketA, marketB},
		snapshots: map[common.Address]Snapshot{marketA: snapshot, marketB: snapshot},
		prices: map[common.Address]*big.Int{
			marketA: big.NewInt(1000000000000000000),
			marketB: big.NewInt(2000000000000000000),
		},
		factors: map[common.Address]*big.Int{
			marketA: big.NewInt(1000000000000000000),
			marketB: big.NewInt(1000000000000000000),
		},
	}

	agg := NewAggregator(reader, zerolog.Nop())
	result, err := agg.Aggregate(context.Background(), common.HexToAddress("0xabc0000000000000000000000000000000000000"))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	// Each market: 1 * 1 * price * 100 / 1e12. Prices 1 and 2 sum to 3e-10.
	want := decimal.RequireFromString("0.0000000003")
	if !result.Collateral.Equal(want) {
		t.Fatalf("collateral mismatch: got %s, want %s", result.Collateral, want)
	}
}

func TestAggregateFailsOnMarketReadError(t *testing.T) {
	marketA := common.HexToAddress("0x0000000000000000000000000000000000000001")
	marketB := common.HexToAddress("0x0000000000000000000000000000000000000002")
	snapshot := Snapshot{
		BalanceRaw:      big.NewInt(100000000),
		ExchangeRateRaw: big.NewInt(1000000000000000000),
	}
	reader := &stubReader{
		liquidity: big.NewInt(0),
		entered:   []common.Address{marketA, marketB},
		snapshots: map[common.Address]Snapshot{marketA: snapshot},
		prices: map[common.Address]*big.Int{
			marketA: big.NewInt(1000000000000000000),
		},
		factors: map[common.Address]*big.Int{
			marketA: big.NewInt(1000000000000000000),
		},
		failOn: marketB,
	}

	agg := NewAggregator(reader, zerolog.Nop())
	_, err := agg.Aggregate(context.Background(), common.HexToAddress("0xabc0000000000000000000000000000000000000"))
	if err == nil {
		t.Fatal("one failed market read should fail the subscriber")
	}

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected *ReadError, got %T", err)
	}
	if readErr.Market != marketB {
		t.Fatalf("expected failing market %s, got %s", marketB.Hex(), readErr.Market.Hex())
	}
}

func TestAggregateNoMarkets(t *testing.T) {
	reader := &stubReader{liquidity: big.NewInt(1000000000000000000)}

	agg := NewAggregator(reader, zerolog.Nop())
	result, err := agg.Aggregate(context.Background(), common.HexToAddress("0xabc0000000000000000000000000000000000000"))
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if !result.Collateral.IsZero() {
		t.Fatalf("no entered markets should yield zero collateral, got %s", result.Collateral)
	}
	if !result.Remaining.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("remaining mismatch: got %s", result.Remaining)
	}
}
