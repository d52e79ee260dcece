package quoter

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
)

//Publisher turns venue tickers into stream_depth snapshots on each pair channel. The
//outbound bid is the venue bid less the pair spread and the outbound ask is the venue ask
//plus it.
type Publisher struct {
	bus      bus.Bus
	bySymbol map[string][]*quotes.Pair
}

func NewPublisher(b bus.Bus, pairs []*quotes.Pair) *Publisher {
	bySymbol := make(map[string][]*quotes.Pair)
	for _, pair := range pairs {
		if pair.HedgeSymbol == "" {
			continue
		}
		bySymbol[pair.HedgeSymbol] = append(bySymbol[pair.HedgeSymbol], pair)
	}
	return &Publisher{bus: b, bySymbol: bySymbol}
}

//Symbols lists the venue symbols the publisher quotes.
func (p *Publisher) Symbols() []string {
	symbols := make([]string, 0, len(p.bySymbol))
	for symbol := range p.bySymbol {
		symbols = append(symbols, symbol)
	}
	return symbols
}

func Quote(pair *quotes.Pair, ticker Ticker) (*quotes.Snapshot, error) {
	bid, err := quotes.PriceToUnits(ticker.Bid, pair.Quote.Decimals)
	if err != nil {
		return nil, errors.Wrap(err, "ticker bid")
	}
	ask, err := quotes.PriceToUnits(ticker.Ask, pair.Quote.Decimals)
	if err != nil {
		return nil, errors.Wrap(err, "ticker ask")
	}
	return &quotes.Snapshot{
		InboundBid:  bid,
		InboundAsk:  ask,
		OutboundBid: quotes.ApplySpread(bid, pair.SpreadBps, false),
		OutboundAsk: quotes.ApplySpread(ask, pair.SpreadBps, true),
		Time:        ticker.Time,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, ticker Ticker) error {
	for _, pair := range p.bySymbol[ticker.Symbol] {
		snapshot, err := Quote(pair, ticker)
		if err != nil {
			return errors.Wrapf(err, "quote %s", pair.Channel)
		}
		msg, err := bus.NewMessage(bus.EventStreamDepth, pair.Channel, snapshot.Depth(pair))
		if err != nil {
			return err
		}
		if err := p.bus.Publish(ctx, msg); err != nil {
			return errors.Wrapf(err, "publish %s snapshot", pair.Channel)
		}
	}
	return nil
}

//Run publishes every ticker until ctx is done or tickers is closed.
func (p *Publisher) Run(ctx context.Context, tickers <-chan Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case ticker, ok := <-tickers:
			if !ok {
				return
			}
			if err := p.Publish(ctx, ticker); err != nil {
				log.Warn().Err(err).Str("symbol", ticker.Symbol).Msg("failed to publish snapshot")
			}
		}
	}
}
