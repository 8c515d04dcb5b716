package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"liquidation-alerts/internal/chain"
	"liquidation-alerts/internal/config"
	"liquidation-alerts/internal/httpapi"
	"liquidation-alerts/internal/ipfs"
	"liquidation-alerts/internal/market"
	"liquidation-alerts/internal/monitor"
	"liquidation-alerts/internal/notify"
	"liquidation-alerts/internal/risk"
	"liquidation-alerts/internal/scheduler"
	"liquidation-alerts/internal/service"
	"liquidation-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newPipeline wires the full per-cycle dependency graph. simulate swaps the
// transaction submitter for a dry-run one; everything read-side stays live.
// runLock, when shared across pipelines, keeps their cycles from
// interleaving; nil gives the monitor its own lock.
func (a *App) newPipeline(simulate bool, runLock *sync.Mutex) (*monitor.Monitor, error) {
	cfg := a.Config

	if cfg.Channel.ContractAddress == "" {
		return nil, errors.New("channel.contract_address not configured")
	}
	if cfg.Protocol.ComptrollerAddress == "" || cfg.Protocol.OracleAddress == "" {
		return nil, errors.New("protocol contracts not configured")
	}

	client := chain.NewClient(chain.Options{
		RPCURL:  cfg.Ethereum.RPCURL,
		Timeout: cfg.Ethereum.RequestTimeout,
	}, a.Logger)

	// The channel is identified by the signing wallet's address, so the
	// wallet is derived even in simulate mode; derivation is offline.
	wallet, err := chain.NewWallet(cfg.Channel.PrivateKey, cfg.Ethereum.ChainID, client, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("derive channel wallet: %w", err)
	}

	channelContract := client.ChannelContract(common.HexToAddress(cfg.Channel.ContractAddress))
	source := monitor.NewChannelSource(channelContract, wallet.Address(), a.Logger)

	reader := market.NewCompoundReader(
		client,
		common.HexToAddress(cfg.Protocol.ComptrollerAddress),
		common.HexToAddress(cfg.Protocol.OracleAddress),
		cfg.MarketAddresses(),
		a.Logger,
	)
	aggregator := market.NewAggregator(reader, a.Logger)
	evaluator := risk.NewEvaluator(cfg.Pipeline.ThresholdPct)

	var resolver monitor.NameResolver
	if cfg.Protocol.ENSRegistryAddress != "" {
		resolver = chain.NewReverseResolver(common.HexToAddress(cfg.Protocol.ENSRegistryAddress), client, a.Logger)
	}

	publisher := ipfs.NewClient(ipfs.Options{
		APIURL:  cfg.IPFS.APIURL,
		Timeout: cfg.IPFS.RequestTimeout,
	}, a.Logger)

	var submitter notify.MessageSubmitter
	if simulate {
		submitter = notify.NewDryRunSubmitter(a.Logger)
	} else {
		submitter = notify.NewChannelSubmitter(channelContract, wallet, cfg.Channel.ConfirmTimeout)
	}
	dispatcher := notify.NewDispatcher(publisher, submitter, a.Logger)

	return monitor.New(source, aggregator, evaluator, resolver, dispatcher, monitor.Options{
		Workers:           cfg.Pipeline.Workers,
		CycleTimeout:      cfg.Pipeline.CycleTimeout,
		DedupeSubscribers: cfg.Pipeline.DedupeSubscribers,
		RunLock:           runLock,
	}, a.Logger), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service: the recurring scheduler
// plus, when enabled, the localhost trigger API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; audit persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	// One lock across both pipelines: a simulate trigger must not interleave
	// with a scheduled live cycle against the same channel.
	runLock := new(sync.Mutex)
	live, err := a.newPipeline(false, runLock)
	if err != nil {
		return err
	}
	dry, err := a.newPipeline(true, runLock)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	var cycleStore storage.CycleStore
	if store != nil {
		cycleStore = store
	}

	liveSvc := service.New(sched, live, cycleStore, service.Options{
		AdvisoryLockKey: a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
	drySvc := service.New(nil, dry, cycleStore, service.Options{
		Simulated: true,
	}, a.Logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return liveSvc.Run(groupCtx)
	})

	if a.Config.HTTP.Enabled {
		server := httpapi.NewServer(func(ctx context.Context, simulate bool) (monitor.CycleSummary, error) {
			if simulate {
				return drySvc.ExecuteCycle(ctx)
			}
			return liveSvc.ExecuteCycle(ctx)
		}, a.Logger)
		group.Go(func() error {
			return server.Serve(groupCtx, a.Config.HTTP.ListenAddr)
		})
	}

	a.Logger.Info().Msg("starting monitoring service")
	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// RunOnce executes a single cycle immediately and returns its summary.
// simulate exercises the full pipeline without submitting transactions.
func (a *App) RunOnce(ctx context.Context, simulate bool) (monitor.CycleSummary, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return monitor.CycleSummary{}, err
	}
	if closeStore != nil {
		defer closeStore()
	}

	pipe, err := a.newPipeline(simulate, nil)
	if err != nil {
		return monitor.CycleSummary{}, err
	}

	var cycleStore storage.CycleStore
	if store != nil {
		cycleStore = store
	}

	svc := service.New(nil, pipe, cycleStore, service.Options{
		AdvisoryLockKey: a.Config.Scheduler.AdvisoryLockKey,
		Simulated:       simulate,
	}, a.Logger)

	return svc.ExecuteCycle(ctx)
}

// ExportOptions hold parameters for exporting cycle history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
