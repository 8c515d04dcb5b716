package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// ReverseResolver resolves an address to its registered reverse name via the
// ENS registry. Used only to decorate notification text.
type ReverseResolver struct {
	registry *Contract
	client   *Client
	logger   zerolog.Logger
}

// NewReverseResolver binds the ENS registry.
func NewReverseResolver(registryAddress common.Address, client *Client, logger zerolog.Logger) *ReverseResolver {
	return &ReverseResolver{
		registry: client.NewContract(registryAddress, ensRegistryABI),
		client:   client,
		logger:   logger.With().Str("component", "name_resolver").Logger(),
	}
}

// ResolveName looks up the reverse record for addr. Returns an error when no
// resolver is registered for the reverse node.
func (r *ReverseResolver) ResolveName(ctx context.Context, addr common.Address) (string, error) {
	node := namehash(strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + ".addr.reverse")

	outputs, err := r.registry.Call(ctx, "resolver", node)
	if err != nil {
		return "", err
	}
	resolverAddr, ok := outputs[0].(common.Address)
	if !ok {
		return "", errors.New("unexpected resolver output")
	}
	if resolverAddr == (common.Address{}) {
		return "", fmt.Errorf("no reverse resolver for %s", addr.Hex())
	}

	resolver := r.client.NewContract(resolverAddr, ensResolverABI)
	outputs, err = resolver.Call(ctx, "name", node)
	if err != nil {
		return "", err
	}
	name, ok := outputs[0].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("no reverse name for %s", addr.Hex())
	}
	return name, nil
}

// namehash implements the recursive ENS name hashing algorithm.
func namehash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], label))
	}
	return node
}
