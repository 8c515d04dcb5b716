package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// Wallet is the single signing credential used for notification transactions.
// Submission is serialized: the nonce sequence must not be raced even though
// read-side fan-out is unbounded.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	client  *Client
	logger  zerolog.Logger

	sendMux   sync.Mutex
	nonce     uint64
	nonceInit bool
}

// NewWallet derives a wallet from a hex-encoded private key.
func NewWallet(privateKeyHex string, chainID int64, client *Client, logger zerolog.Logger) (*Wallet, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if trimmed == "" {
		return nil, errors.New("channel private key not configured")
	}

	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
		client:  client,
		logger:  logger.With().Str("component", "wallet").Logger(),
	}, nil
}

// Address returns the wallet's account address. The channel itself is
// identified by this address, mirroring how the channel key doubles as the
// channel identity.
func (w *Wallet) Address() common.Address {
	return w.address
}

// Submit signs and sends calldata to the target contract, then waits for one
// confirmation. Only one submission is in flight at a time.
func (w *Wallet) Submit(ctx context.Context, to common.Address, calldata []byte, confirmTimeout time.Duration) (*types.Receipt, error) {
	w.sendMux.Lock()
	defer w.sendMux.Unlock()

	client, err := w.client.Backend(ctx)
	if err != nil {
		return nil, err
	}

	if !w.nonceInit {
		nonce, err := client.PendingNonceAt(ctx, w.address)
		if err != nil {
			return nil, fmt.Errorf("fetch nonce: %w", err)
		}
		w.nonce = nonce
		w.nonceInit = true
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		w.nonceInit = false
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: w.address,
		To:   &to,
		Data: calldata,
	})
	if err != nil {
		w.nonceInit = false
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	// Headroom for state drift between estimate and inclusion.
	gasLimit = gasLimit + gasLimit/5

	tx := types.NewTransaction(w.nonce, to, big.NewInt(0), gasLimit, gasPrice, calldata)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		w.nonceInit = false
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	w.nonce++

	w.logger.Info().
		Str("tx", signed.Hash().Hex()).
		Str("to", to.Hex()).
		Msg("transaction submitted, waiting for confirmation")

	if confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, confirmTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(ctx, client, signed)
	if err != nil {
		return nil, fmt.Errorf("wait for confirmation: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %s reverted", signed.Hash().Hex())
	}
	return receipt, nil
}
