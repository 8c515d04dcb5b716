package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABI fragments for the contracts the pipeline touches. Only the
// methods and events actually called are declared.
const (
	channelABIJSON = `[
{"inputs":[{"internalType":"address","name":"channel","type":"address"}],"name":"channels","outputs":[{"internalType":"uint256","name":"channelStartBlock","type":"uint256"},{"internalType":"uint256","name":"channelUpdateBlock","type":"uint256"}],"stateMutability":"view","type":"function"},
{"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"channel","type":"address"},{"indexed":true,"internalType":"address","name":"user","type":"address"}],"name":"Subscribe","type":"event"},
{"inputs":[{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"notificationType","type":"uint256"},{"internalType":"string","name":"identity","type":"string"},{"internalType":"uint256","name":"storageType","type":"uint256"}],"name":"sendMessage","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

	comptrollerABIJSON = `[
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"getAccountLiquidity","outputs":[{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"getAssetsIn","outputs":[{"internalType":"address[]","name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"markets","outputs":[{"internalType":"bool","name":"isListed","type":"bool"},{"internalType":"uint256","name":"collateralFactorMantissa","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	marketTokenABIJSON = `[
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"getAccountSnapshot","outputs":[{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	priceOracleABIJSON = `[
{"inputs":[{"internalType":"address","name":"cToken","type":"address"}],"name":"getUnderlyingPrice","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

	ensRegistryABIJSON = `[
{"inputs":[{"internalType":"bytes32","name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}]`

	ensResolverABIJSON = `[
{"inputs":[{"internalType":"bytes32","name":"node","type":"bytes32"}],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}]`
)

var (
	channelABI     abi.ABI
	comptrollerABI abi.ABI
	marketTokenABI abi.ABI
	priceOracleABI abi.ABI
	ensRegistryABI abi.ABI
	ensResolverABI abi.ABI
)

func init() {
	channelABI = mustParseABI(channelABIJSON, "channel")
	comptrollerABI = mustParseABI(comptrollerABIJSON, "comptroller")
	marketTokenABI = mustParseABI(marketTokenABIJSON, "market token")
	priceOracleABI = mustParseABI(priceOracleABIJSON, "price oracle")
	ensRegistryABI = mustParseABI(ensRegistryABIJSON, "ens registry")
	ensResolverABI = mustParseABI(ensResolverABIJSON, "ens resolver")
}

func mustParseABI(raw, name string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse " + name + " ABI: " + err.Error())
	}
	return parsed
}
