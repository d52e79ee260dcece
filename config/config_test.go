package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[chain]
chain_id = 137
contract_address = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
node_http_endpoint = "http://localhost:8545"

[wallet]
address = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
private_key = "prompt"

[bus]
redis_url = "redis://localhost:6379/0"

[logging]
level = "debug"
console = true

[[pairs]]
channel = "WETH-USDC"
base_token = "0x4444444444444444444444444444444444444444"
base_symbol = "WETH"
base_decimals = 18
quote_token = "0x3333333333333333333333333333333333333333"
quote_symbol = "USDC"
quote_decimals = 6
max_base_amount = "10"
max_quote_amount = "25000.5"
slippage_percent = "1"
spread_bps = 15
hedge_symbol = "ETHUSDC"
hedge = true
`

func noEnv(string) (string, bool) { return "", false }

func TestParse(t *testing.T) {
	conf, err := Parse(sampleConfig, noEnv)
	require.NoError(t, err)

	assert.Equal(t, int64(137), conf.Chain.ChainID)
	assert.Equal(t, "CoinQuoter RFQ", conf.Chain.DomainName)
	assert.Equal(t, 1, conf.Chain.ReceiptPollSeconds)
	assert.Equal(t, PromptPrivateKey, conf.Wallet.PrivateKey)
	assert.True(t, conf.Logging.Console)

	pair, ok := conf.Pair("WETH-USDC")
	require.True(t, ok)
	assert.Equal(t, uint8(18), pair.BaseDecimals)
	assert.Equal(t, "25000.5", pair.MaxQuoteAmount)
	assert.True(t, pair.Hedge)

	_, ok = conf.Pair("nope")
	assert.False(t, ok)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvPrivateKey:  "0xabc",
		EnvRedisURL:    "redis://other:6379/1",
		EnvVenueSecret: "s3cret",
	}
	conf, err := Parse(sampleConfig, func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", conf.Wallet.PrivateKey)
	assert.Equal(t, "redis://other:6379/1", conf.Bus.RedisURL)
	assert.Equal(t, "s3cret", conf.Venue.APISecret)
	assert.Empty(t, conf.Venue.APIKey)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, conf.Pairs, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad checksum": `
[chain]
chain_id = 1
contract_address = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD"
[wallet]
address = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
`,
		"missing chain id": `
[chain]
contract_address = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
[wallet]
address = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
`,
		"bad pair decimal": sampleConfig + `
[[pairs]]
channel = "X"
base_token = "0x4444444444444444444444444444444444444444"
quote_token = "0x3333333333333333333333333333333333333333"
slippage_percent = "one"
`,
		"duplicate channel": sampleConfig + `
[[pairs]]
channel = "WETH-USDC"
base_token = "0x4444444444444444444444444444444444444444"
quote_token = "0x3333333333333333333333333333333333333333"
`,
		"bad level": `
[chain]
chain_id = 1
contract_address = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
[wallet]
address = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
[logging]
level = "loud"
`,
	}
	for name, doc := range cases {
		_, err := Parse(doc, noEnv)
		assert.Error(t, err, name)
	}
}

func TestChecksum(t *testing.T) {
	for _, address := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	} {
		assert.Equal(t, address, ToChecksumAddress(address))
		assert.NoError(t, ValidateAddress(address))
	}
	assert.Error(t, ValidateAddress("0x1234"))
	assert.Error(t, ValidateAddress("5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
}
