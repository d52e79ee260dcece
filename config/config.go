package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	EnvPrivateKey      = "COINQUOTER_PRIVATE_KEY"
	EnvRedisURL        = "COINQUOTER_REDIS_URL"
	EnvVenueKey        = "COINQUOTER_VENUE_KEY"
	EnvVenueSecret     = "COINQUOTER_VENUE_SECRET"
	EnvVenuePassphrase = "COINQUOTER_VENUE_PASSPHRASE"

	//PromptPrivateKey asks for the key on the terminal instead of reading it from config.
	PromptPrivateKey = "prompt"
)

type Config struct {
	Chain   ChainConfig   `toml:"chain"`
	Wallet  WalletConfig  `toml:"wallet"`
	Bus     BusConfig     `toml:"bus"`
	Venue   VenueConfig   `toml:"venue"`
	Maker   MakerConfig   `toml:"maker"`
	Logging LoggingConfig `toml:"logging"`
	Pairs   []Pair        `toml:"pairs"`
}

type ChainConfig struct {
	ChainID                int64  `toml:"chain_id"`
	ContractAddress        string `toml:"contract_address"`
	NodeHttpEndpoint       string `toml:"node_http_endpoint"`
	NodeWebsocketsEndpoint string `toml:"node_websockets_endpoint"`
	DomainName             string `toml:"domain_name"`
	DomainVersion          string `toml:"domain_version"`
	ReceiptPollSeconds     int    `toml:"receipt_poll_seconds"`
}

type WalletConfig struct {
	Address           string `toml:"address"`
	PrivateKey        string `toml:"private_key"`
	SessionPrivateKey string `toml:"session_private_key"`
}

type BusConfig struct {
	RedisURL string `toml:"redis_url"`
}

type VenueConfig struct {
	RestURL        string `toml:"rest_url"`
	WebsocketURL   string `toml:"websocket_url"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	Passphrase     string `toml:"passphrase"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type MakerConfig struct {
	BlotterPath           string `toml:"blotter_path"`
	MetricsAddr           string `toml:"metrics_addr"`
	SnapshotMaxAgeSeconds int    `toml:"snapshot_max_age_seconds"`
}

type LoggingConfig struct {
	Level   string `toml:"level"`
	Console bool   `toml:"console"`
}

//Pair is one quoted market. Amount limits are human readable decimals in token units.
type Pair struct {
	Channel         string `toml:"channel"`
	BaseToken       string `toml:"base_token"`
	BaseSymbol      string `toml:"base_symbol"`
	BaseDecimals    uint8  `toml:"base_decimals"`
	QuoteToken      string `toml:"quote_token"`
	QuoteSymbol     string `toml:"quote_symbol"`
	QuoteDecimals   uint8  `toml:"quote_decimals"`
	MaxBaseAmount   string `toml:"max_base_amount"`
	MaxQuoteAmount  string `toml:"max_quote_amount"`
	SlippagePercent string `toml:"slippage_percent"`
	SpreadBps       uint64 `toml:"spread_bps"`
	HedgeSymbol     string `toml:"hedge_symbol"`
	Hedge           bool   `toml:"hedge"`
}

func Default() Config {
	return Config{
		Chain: ChainConfig{
			DomainName:         "CoinQuoter RFQ",
			DomainVersion:      "1",
			ReceiptPollSeconds: 1,
		},
		Venue:   VenueConfig{TimeoutSeconds: 10},
		Maker:   MakerConfig{BlotterPath: "blotter.db", SnapshotMaxAgeSeconds: 30},
		Logging: LoggingConfig{Level: "info"},
	}
}

//Load reads the toml file at path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	tomlBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(string(tomlBytes), os.LookupEnv)
}

//Parse decodes a toml document. lookupEnv is usually os.LookupEnv.
func Parse(tomlString string, lookupEnv func(string) (string, bool)) (*Config, error) {
	conf := Default()
	if _, err := toml.Decode(tomlString, &conf); err != nil {
		return nil, errors.Wrap(err, "failed to decode config toml")
	}
	conf.applyEnv(lookupEnv)
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) {
	if lookupEnv == nil {
		return
	}
	overrides := map[string]*string{
		EnvPrivateKey:      &c.Wallet.PrivateKey,
		EnvRedisURL:        &c.Bus.RedisURL,
		EnvVenueKey:        &c.Venue.APIKey,
		EnvVenueSecret:     &c.Venue.APISecret,
		EnvVenuePassphrase: &c.Venue.Passphrase,
	}
	for name, target := range overrides {
		if value, ok := lookupEnv(name); ok && value != "" {
			*target = value
		}
	}
}

func (c *Config) Validate() error {
	if c.Chain.ChainID <= 0 {
		return errors.New("chain.chain_id must be positive")
	}
	if err := ValidateAddress(c.Chain.ContractAddress); err != nil {
		return errors.Wrap(err, "chain.contract_address")
	}
	if c.Chain.DomainName == "" || c.Chain.DomainVersion == "" {
		return errors.New("chain.domain_name and chain.domain_version are required")
	}
	if c.Chain.ReceiptPollSeconds <= 0 {
		return errors.New("chain.receipt_poll_seconds must be positive")
	}
	if err := ValidateAddress(c.Wallet.Address); err != nil {
		return errors.Wrap(err, "wallet.address")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	channels := make(map[string]bool)
	for i, pair := range c.Pairs {
		if err := pair.Validate(); err != nil {
			return errors.Wrapf(err, "pairs[%d]", i)
		}
		if channels[pair.Channel] {
			return errors.Errorf("pairs[%d]: duplicate channel %s", i, pair.Channel)
		}
		channels[pair.Channel] = true
	}
	return nil
}

func (p Pair) Validate() error {
	if p.Channel == "" {
		return errors.New("channel is required")
	}
	if err := ValidateAddress(p.BaseToken); err != nil {
		return errors.Wrap(err, "base_token")
	}
	if err := ValidateAddress(p.QuoteToken); err != nil {
		return errors.Wrap(err, "quote_token")
	}
	if strings.EqualFold(p.BaseToken, p.QuoteToken) {
		return errors.New("base_token and quote_token must differ")
	}
	if p.BaseDecimals > 36 || p.QuoteDecimals > 36 {
		return errors.New("token decimals above 36 are not supported")
	}
	for name, value := range map[string]string{"max_base_amount": p.MaxBaseAmount, "max_quote_amount": p.MaxQuoteAmount, "slippage_percent": p.SlippagePercent} {
		if value == "" {
			continue
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return errors.Wrap(err, name)
		}
		if d.IsNegative() {
			return errors.Errorf("%s must not be negative", name)
		}
	}
	if p.Hedge && p.HedgeSymbol == "" {
		return errors.New("hedge_symbol is required when hedge is enabled")
	}
	return nil
}

func (c *Config) Pair(channel string) (Pair, bool) {
	for _, pair := range c.Pairs {
		if pair.Channel == channel {
			return pair, true
		}
	}
	return Pair{}, false
}
