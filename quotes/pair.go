package quotes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/config"
)

type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

//Pair is a quoted market with its risk limits in smallest units. A nil maximum means
//no limit on that leg.
type Pair struct {
	Channel        string
	Base           Token
	Quote          Token
	MaxBaseAmount  *big.Int
	MaxQuoteAmount *big.Int
	SlippageBps    uint64
	SpreadBps      uint64
	HedgeSymbol    string
	Hedge          bool
}

func PairFromConfig(conf config.Pair) (*Pair, error) {
	pair := &Pair{
		Channel:     conf.Channel,
		Base:        Token{Address: common.HexToAddress(conf.BaseToken), Symbol: conf.BaseSymbol, Decimals: conf.BaseDecimals},
		Quote:       Token{Address: common.HexToAddress(conf.QuoteToken), Symbol: conf.QuoteSymbol, Decimals: conf.QuoteDecimals},
		SpreadBps:   conf.SpreadBps,
		HedgeSymbol: conf.HedgeSymbol,
		Hedge:       conf.Hedge,
	}
	if pair.SpreadBps >= 10000 {
		return nil, errors.Errorf("pair %s: spread of %d bps is too wide", conf.Channel, conf.SpreadBps)
	}

	var err error
	if conf.MaxBaseAmount != "" {
		if pair.MaxBaseAmount, err = ToUnits(conf.MaxBaseAmount, conf.BaseDecimals); err != nil {
			return nil, errors.Wrapf(err, "pair %s max_base_amount", conf.Channel)
		}
	}
	if conf.MaxQuoteAmount != "" {
		if pair.MaxQuoteAmount, err = ToUnits(conf.MaxQuoteAmount, conf.QuoteDecimals); err != nil {
			return nil, errors.Wrapf(err, "pair %s max_quote_amount", conf.Channel)
		}
	}
	if pair.SlippageBps, err = PercentToBps(conf.SlippagePercent); err != nil {
		return nil, errors.Wrapf(err, "pair %s slippage_percent", conf.Channel)
	}
	return pair, nil
}

func PairsFromConfig(conf *config.Config) ([]*Pair, error) {
	pairs := make([]*Pair, 0, len(conf.Pairs))
	for _, p := range conf.Pairs {
		pair, err := PairFromConfig(p)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}
