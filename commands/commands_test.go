package commands

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/config"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
)

const testConfig = `
[chain]
chain_id = 137
contract_address = "0xc0de000000000000000000000000000000000001"

[wallet]
address = "0x71562b71999873db5b286df957af199ec94617f7"
private_key = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

[[pairs]]
channel = "WETH-USDC"
base_token = "0x4444444444444444444444444444444444444444"
base_symbol = "WETH"
base_decimals = 18
quote_token = "0x3333333333333333333333333333333333333333"
quote_symbol = "USDC"
quote_decimals = 6
slippage_percent = "1"
`

func loadTestConfig(t *testing.T) {
	loaded, err := config.Parse(testConfig, nil)
	require.NoError(t, err)
	conf = loaded
}

func TestParseAmount(t *testing.T) {
	amount, err := parseAmount("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), amount.Int64())

	_, err = parseAmount("0", 6)
	assert.Error(t, err)
	_, err = parseAmount("abc", 6)
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	address, err := parseAddress("0x4444444444444444444444444444444444444444")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x4444444444444444444444444444444444444444"), address)

	_, err = parseAddress("0x44")
	assert.Error(t, err)
}

func TestFindPair(t *testing.T) {
	loadTestConfig(t)

	pair, err := findPair("WETH-USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), pair.SlippageBps)

	_, err = findPair("BTC-USDC")
	assert.Error(t, err)
}

func TestSenderWalletFallsBackToPrimaryKey(t *testing.T) {
	loadTestConfig(t)

	sender, err := senderWallet()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(conf.Wallet.Address), sender.Address)
}

func TestDeployDevContractFundsMaker(t *testing.T) {
	loadTestConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pairs, err := quotes.PairsFromConfig(conf)
	require.NoError(t, err)
	makerAddress := common.HexToAddress(conf.Wallet.Address)

	contract, err := deployDevContract(ctx, pairs, makerAddress)
	require.NoError(t, err)

	expected := new(big.Int).Mul(big.NewInt(devFunding), big.NewInt(1_000_000))
	assert.Equal(t, 0, expected.Cmp(contract.TokenBalance(pairs[0].Quote.Address, makerAddress)))
	assert.Equal(t, makerAddress, contract.Owner())
}

func TestDeployDevContractSharedTokens(t *testing.T) {
	loadTestConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pairs, err := quotes.PairsFromConfig(conf)
	require.NoError(t, err)
	wbtc := *pairs[0]
	wbtc.Channel = "WBTC-USDC"
	wbtc.Base = quotes.Token{Address: common.HexToAddress("0x5555555555555555555555555555555555555555"), Symbol: "WBTC", Decimals: 8}
	makerAddress := common.HexToAddress(conf.Wallet.Address)

	contract, err := deployDevContract(ctx, append(pairs, &wbtc), makerAddress)
	require.NoError(t, err)
	symbol, decimals, ok := contract.TokenMetadata(wbtc.Quote.Address)
	require.True(t, ok)
	assert.Equal(t, "USDC", symbol)
	assert.Equal(t, uint8(6), decimals)

	conflicting := wbtc
	conflicting.Quote.Decimals = 18
	_, err = deployDevContract(ctx, append(pairs, &conflicting), makerAddress)
	assert.ErrorContains(t, err, "already deployed with 6 decimals")
}
