package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Options parameterise the RPC client.
type Options struct {
	RPCURL  string
	Timeout time.Duration
}

// Client wraps an Ethereum RPC endpoint. The underlying connection is dialed
// lazily on first use and reused afterwards.
type Client struct {
	opts      Options
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewClient builds a lazily-connecting RPC client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	return &Client{opts: opts, logger: logger.With().Str("component", "chain_client").Logger()}
}

// Backend returns the shared ethclient, dialing on first use.
func (c *Client) Backend(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	c.client = client
	return client, nil
}

// CallTimeout bounds a single read against the configured request timeout.
func (c *Client) CallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// HeadBlock returns the current chain head number.
func (c *Client) HeadBlock(ctx context.Context) (uint64, error) {
	client, err := c.Backend(ctx)
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.CallTimeout(ctx)
	defer cancel()
	return client.BlockNumber(ctx)
}

// Contract binds an address and ABI to the shared client for read calls,
// event queries, and calldata packing.
type Contract struct {
	Address common.Address
	ABI     abi.ABI
	client  *Client
}

// NewContract binds a contract handle.
func (c *Client) NewContract(address common.Address, contractABI abi.ABI) *Contract {
	return &Contract{Address: address, ABI: contractABI, client: c}
}

// Call executes a read-only method and returns the unpacked outputs.
func (ct *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	client, err := ct.client.Backend(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := ct.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, cancel := ct.client.CallTimeout(ctx)
	defer cancel()

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &ct.Address, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	outputs, err := ct.ABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return outputs, nil
}

// FilterEvents queries the contract's log history for one event from the
// given block to the chain head. Extra topics filter on indexed arguments.
func (ct *Contract) FilterEvents(ctx context.Context, event string, fromBlock uint64, topics ...[]common.Hash) ([]types.Log, error) {
	client, err := ct.client.Backend(ctx)
	if err != nil {
		return nil, err
	}

	ev, ok := ct.ABI.Events[event]
	if !ok {
		return nil, fmt.Errorf("event %s not present in ABI", event)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{ct.Address},
		Topics:    append([][]common.Hash{{ev.ID}}, topics...),
	}

	ctx, cancel := ct.client.CallTimeout(ctx)
	defer cancel()

	logs, err := client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter %s logs: %w", event, err)
	}
	return logs, nil
}

// Pack builds calldata for a state-changing method.
func (ct *Contract) Pack(method string, args ...interface{}) ([]byte, error) {
	payload, err := ct.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return payload, nil
}

// ChannelContract binds the notification channel contract.
func (c *Client) ChannelContract(address common.Address) *Contract {
	return c.NewContract(address, channelABI)
}

// ComptrollerContract binds the lending protocol comptroller.
func (c *Client) ComptrollerContract(address common.Address) *Contract {
	return c.NewContract(address, comptrollerABI)
}

// MarketContract binds one lending market token contract.
func (c *Client) MarketContract(address common.Address) *Contract {
	return c.NewContract(address, marketTokenABI)
}

// OracleContract binds the protocol price oracle.
func (c *Client) OracleContract(address common.Address) *Contract {
	return c.NewContract(address, priceOracleABI)
}
