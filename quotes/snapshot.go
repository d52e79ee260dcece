package quotes

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
)

type OrderType string

const (
	//Bid: the taker gives base and receives quote.
	Bid OrderType = "bid"
	//Ask: the taker gives quote and receives base.
	Ask OrderType = "ask"
)

func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case Bid, Ask:
		return OrderType(s), nil
	}
	return "", errors.Errorf("unknown order type %q", s)
}

//Snapshot holds prices in quote smallest units per whole base token. Inbound prices are
//the venue's, outbound prices are what the maker quotes.
type Snapshot struct {
	InboundBid  *big.Int
	InboundAsk  *big.Int
	OutboundBid *big.Int
	OutboundAsk *big.Int
	Time        time.Time
}

//Reference is the outbound price an order of type t is checked against.
func (s *Snapshot) Reference(t OrderType) *big.Int {
	if t == Bid {
		return s.OutboundBid
	}
	return s.OutboundAsk
}

func SnapshotFromDepth(pair *Pair, depth bus.StreamDepth) (*Snapshot, error) {
	snapshot := &Snapshot{Time: time.UnixMilli(depth.Timestamp)}
	fields := []struct {
		value  string
		target **big.Int
	}{
		{depth.InboundBid, &snapshot.InboundBid},
		{depth.InboundAsk, &snapshot.InboundAsk},
		{depth.OutboundBid, &snapshot.OutboundBid},
		{depth.OutboundAsk, &snapshot.OutboundAsk},
	}
	for _, field := range fields {
		if field.value == "" {
			*field.target = new(big.Int)
			continue
		}
		price, err := PriceToUnits(field.value, pair.Quote.Decimals)
		if err != nil {
			return nil, errors.Wrap(err, "invalid snapshot price")
		}
		*field.target = price
	}
	return snapshot, nil
}

func (s *Snapshot) Depth(pair *Pair) bus.StreamDepth {
	return bus.StreamDepth{
		InboundBid:  FromUnits(s.InboundBid, pair.Quote.Decimals),
		InboundAsk:  FromUnits(s.InboundAsk, pair.Quote.Decimals),
		OutboundBid: FromUnits(s.OutboundBid, pair.Quote.Decimals),
		OutboundAsk: FromUnits(s.OutboundAsk, pair.Quote.Decimals),
		Timestamp:   s.Time.UnixMilli(),
	}
}
