package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"liquidation-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Channel   ChannelConfig   `mapstructure:"channel"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	IPFS      IPFSConfig      `mapstructure:"ipfs"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for audit records.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs cycle cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ChainID        int64         `mapstructure:"chain_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ChannelConfig identifies the notification channel and its signing wallet.
type ChannelConfig struct {
	ContractAddress string        `mapstructure:"contract_address"`
	PrivateKey      string        `mapstructure:"private_key"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
}

// ProtocolConfig points at the lending protocol contracts. Markets maps a
// token symbol to its market contract address; it replaces the inline
// address table the legacy channel rebuilt on every check.
type ProtocolConfig struct {
	ComptrollerAddress string            `mapstructure:"comptroller_address"`
	OracleAddress      string            `mapstructure:"oracle_address"`
	ENSRegistryAddress string            `mapstructure:"ens_registry_address"`
	Markets            map[string]string `mapstructure:"markets"`
}

// PipelineConfig tunes the per-cycle fan-out.
type PipelineConfig struct {
	Workers           int           `mapstructure:"workers"`
	CycleTimeout      time.Duration `mapstructure:"cycle_timeout"`
	DedupeSubscribers bool          `mapstructure:"dedupe_subscribers"`
	ThresholdPct      float64       `mapstructure:"threshold_pct"`
}

// IPFSConfig captures content-store connectivity.
type IPFSConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// HTTPConfig sets up the operational trigger endpoint.
type HTTPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LIQWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "liqwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6c697177))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("ethereum.chain_id", int64(1))
	v.SetDefault("ethereum.request_timeout", "15s")

	v.SetDefault("channel.confirm_timeout", "2m")

	v.SetDefault("pipeline.workers", 8)
	v.SetDefault("pipeline.cycle_timeout", "20m")
	v.SetDefault("pipeline.dedupe_subscribers", true)
	v.SetDefault("pipeline.threshold_pct", 10.0)

	v.SetDefault("ipfs.api_url", "http://127.0.0.1:5001")
	v.SetDefault("ipfs.request_timeout", "30s")

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.listen_addr", "127.0.0.1:4001")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be greater than zero")
	}
	if c.Pipeline.ThresholdPct <= 0 || c.Pipeline.ThresholdPct > 100 {
		return fmt.Errorf("pipeline.threshold_pct must be within (0, 100]")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Channel.ContractAddress != "" && !common.IsHexAddress(c.Channel.ContractAddress) {
		return fmt.Errorf("channel.contract_address is not a valid address")
	}
	if c.Protocol.ComptrollerAddress != "" && !common.IsHexAddress(c.Protocol.ComptrollerAddress) {
		return fmt.Errorf("protocol.comptroller_address is not a valid address")
	}
	if c.Protocol.OracleAddress != "" && !common.IsHexAddress(c.Protocol.OracleAddress) {
		return fmt.Errorf("protocol.oracle_address is not a valid address")
	}
	for symbol, addr := range c.Protocol.Markets {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("protocol.markets[%s] is not a valid address", symbol)
		}
	}
	return nil
}

// MarketAddresses returns the configured market map keyed by address.
func (c *Config) MarketAddresses() map[common.Address]string {
	out := make(map[common.Address]string, len(c.Protocol.Markets))
	for symbol, addr := range c.Protocol.Markets {
		out[common.HexToAddress(addr)] = symbol
	}
	return out
}
