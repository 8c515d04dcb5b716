package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: liqwatch\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.Interval != 24*time.Hour {
		t.Fatalf("unexpected default interval: %s", cfg.Scheduler.Interval)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Fatalf("unexpected default workers: %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.ThresholdPct != 10.0 {
		t.Fatalf("unexpected default threshold: %f", cfg.Pipeline.ThresholdPct)
	}
	if !cfg.Pipeline.DedupeSubscribers {
		t.Fatal("dedupe should default to enabled")
	}
	if cfg.HTTP.ListenAddr != "127.0.0.1:4001" {
		t.Fatalf("unexpected default listen addr: %s", cfg.HTTP.ListenAddr)
	}
}

func TestLoadValidatesAddresses(t *testing.T) {
	path := writeConfig(t, "channel:\n  contract_address: not-an-address\n")
	if _, err := Load(path); err == nil {
		t.Fatal("invalid channel address should fail validation")
	}

	path = writeConfig(t, "protocol:\n  markets:\n    cdai: nope\n")
	if _, err := Load(path); err == nil {
		t.Fatal("invalid market address should fail validation")
	}
}

func TestMarketAddresses(t *testing.T) {
	path := writeConfig(t, "protocol:\n  markets:\n    cdai: \"0x5d3a536E4D6DbD6114cc1Ead35777bAB948E3643\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	markets := cfg.MarketAddresses()
	if len(markets) != 1 {
		t.Fatalf("expected one market, got %d", len(markets))
	}
	for _, symbol := range markets {
		if symbol != "cdai" {
			t.Fatalf("unexpected symbol: %q", symbol)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
