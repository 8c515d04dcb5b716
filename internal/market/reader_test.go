package market

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"liquidation-alerts/internal/chain"
)

func newTestReader(markets map[common.Address]string) *CompoundReader {
	client := chain.NewClient(chain.Options{}, zerolog.Nop())
	return NewCompoundReader(client, common.Address{}, common.Address{}, markets, zerolog.Nop())
}

func TestConfiguredMarketsRejectsUnknownMarket(t *testing.T) {
	known := common.HexToAddress("0x0000000000000000000000000000000000000001")
	unknown := common.HexToAddress("0x0000000000000000000000000000000000000002")
	reader := newTestReader(map[common.Address]string{known: "cdai"})

	_, err := reader.configuredMarkets([]common.Address{known, unknown})
	if err == nil {
		t.Fatal("an entered market missing from configuration must fail the subscriber")
	}

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected *ReadError, got %T", err)
	}
	if readErr.Market != unknown {
		t.Fatalf("error should name the unconfigured market, got %s", readErr.Market.Hex())
	}
}

func TestConfiguredMarketsPassesKnownMarkets(t *testing.T) {
	marketA := common.HexToAddress("0x0000000000000000000000000000000000000001")
	marketB := common.HexToAddress("0x0000000000000000000000000000000000000002")
	reader := newTestReader(map[common.Address]string{marketA: "cdai", marketB: "cusdc"})

	entered, err := reader.configuredMarkets([]common.Address{marketA, marketB})
	if err != nil {
		t.Fatalf("configured markets should pass: %v", err)
	}
	if len(entered) != 2 {
		t.Fatalf("expected both markets, got %d", len(entered))
	}
}
