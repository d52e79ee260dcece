package hedge

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/quotes"
)

const ReasonHedgeFailed = "auto hedging failed"

//Result describes a placed hedge. It is nil when the pair is not hedged.
type Result struct {
	Order   MarketOrder
	OrderID string
}

type Coordinator struct {
	venue Venue
}

func NewCoordinator(venue Venue) *Coordinator {
	return &Coordinator{venue: venue}
}

//OrderFor is the offsetting market order of an accepted fill. When the maker gives base
//(an ask) it buys base back; when it receives base (a bid) it sells it.
func OrderFor(decision *quotes.Decision) MarketOrder {
	side := SideSell
	if decision.Type == quotes.Ask {
		side = SideBuy
	}
	return MarketOrder{
		Symbol:   decision.Pair.HedgeSymbol,
		Side:     side,
		Quantity: quotes.FromUnits(decision.BaseAmount, decision.Pair.Base.Decimals),
	}
}

//Hedge places the offsetting order for decision. An error means the fill must not be submitted.
func (c *Coordinator) Hedge(ctx context.Context, decision *quotes.Decision) (*Result, error) {
	if !decision.Pair.Hedge {
		return nil, nil
	}
	if c.venue == nil {
		return nil, errors.Wrap(&quotes.Rejection{Reason: ReasonHedgeFailed}, "no venue configured")
	}

	order := OrderFor(decision)
	orderID, err := c.venue.PlaceMarketOrder(ctx, order)
	if err != nil {
		log.Error().Err(err).Str("symbol", order.Symbol).Str("side", string(order.Side)).Str("quantity", order.Quantity).Msg("hedge failed")
		return nil, errors.Wrap(&quotes.Rejection{Reason: ReasonHedgeFailed}, err.Error())
	}

	log.Info().Str("symbol", order.Symbol).Str("side", string(order.Side)).Str("quantity", order.Quantity).Str("orderId", orderID).Msg("hedge placed")
	return &Result{Order: order, OrderID: orderID}, nil
}
