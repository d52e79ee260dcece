package quotes

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/invalidator"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/sessions"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/settlement"
)

const (
	ReasonNoSnapshot       = "no price snapshot"
	ReasonStaleSnapshot    = "stale price snapshot"
	ReasonInvalidAssetData = "invalid asset data"
	ReasonNotOurOrder      = "order not addressed to this maker"
	ReasonUnsupportedAsset = "unsupported asset"
	ReasonTypeMismatch     = "order type mismatch"
	ReasonAmountMismatch   = "amount mismatch"
	ReasonZeroAmount       = "zero amount"
	ReasonNotional         = "maximum notional exceeded"
	ReasonSlippage         = "slippage exceeded"
	ReasonLedgerFailure    = "ledger unavailable"
)

//Rejection is a maker policy decision not to fill. It never reaches the ledger.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

func reject(reason string) error {
	return &Rejection{Reason: reason}
}

//ReasonOf extracts the reason published to the taker for any validation error.
func ReasonOf(err error) string {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection.Reason
	}
	return chain.ReasonOf(err)
}

//LedgerView reads the settlement contract, locally or over RPC.
type LedgerView interface {
	SessionOf(ctx context.Context, owner common.Address) (sessions.Session, error)
	InvalidatedOrderRFQ(ctx context.Context, account common.Address, orderID uint64) (bool, error)
}

//Decision is an accepted fill request with everything derived while validating it.
type Decision struct {
	Request   *FillRequest
	Pair      *Pair
	Type      OrderType
	OrderHash common.Hash
	Taker     common.Address
	Maker     common.Address
	//BaseAmount and QuoteAmount are the full order legs in smallest units.
	BaseAmount  *big.Int
	QuoteAmount *big.Int
	Price       *big.Int
	Reference   *big.Int
}

type Validator struct {
	maker  common.Address
	sender common.Address
	codec  *orders.Codec
	ledger LedgerView
	maxAge uint64
}

//NewValidator checks requests for orders made by maker and submitted by sender, the maker
//itself or its session key. Snapshots older than maxAge seconds are refused; 0 disables the check.
func NewValidator(maker common.Address, sender common.Address, codec *orders.Codec, ledger LedgerView, maxAge uint64) *Validator {
	return &Validator{maker: maker, sender: sender, codec: codec, ledger: ledger, maxAge: maxAge}
}

func (v *Validator) Validate(ctx context.Context, pair *Pair, req *FillRequest, snapshot *Snapshot, now uint64) (*Decision, error) {
	if snapshot == nil {
		return nil, reject(ReasonNoSnapshot)
	}
	if v.maxAge > 0 && uint64(snapshot.Time.Unix())+v.maxAge < now {
		return nil, reject(ReasonStaleSnapshot)
	}

	order := req.Order
	takerLeg, makerLeg, err := v.codec.Legs(order)
	if err != nil {
		return nil, reject(ReasonInvalidAssetData)
	}
	if makerLeg.From != v.maker {
		return nil, reject(ReasonNotOurOrder)
	}

	decision := &Decision{Request: req, Pair: pair, Taker: takerLeg.From, Maker: makerLeg.From}
	switch {
	case order.TakerAsset == pair.Base.Address && order.MakerAsset == pair.Quote.Address:
		decision.Type = Bid
		decision.BaseAmount, decision.QuoteAmount = takerLeg.Amount, makerLeg.Amount
	case order.TakerAsset == pair.Quote.Address && order.MakerAsset == pair.Base.Address:
		decision.Type = Ask
		decision.BaseAmount, decision.QuoteAmount = makerLeg.Amount, takerLeg.Amount
	default:
		return nil, reject(ReasonUnsupportedAsset)
	}
	if req.Type != decision.Type {
		return nil, reject(ReasonTypeMismatch)
	}
	if (req.TakerAmount != nil && req.TakerAmount.Cmp(takerLeg.Amount) != 0) ||
		(req.MakerAmount != nil && req.MakerAmount.Cmp(makerLeg.Amount) != 0) {
		return nil, reject(ReasonAmountMismatch)
	}
	if decision.BaseAmount.Sign() == 0 || decision.QuoteAmount.Sign() == 0 {
		return nil, reject(ReasonZeroAmount)
	}

	if (pair.MaxBaseAmount != nil && decision.BaseAmount.Cmp(pair.MaxBaseAmount) > 0) ||
		(pair.MaxQuoteAmount != nil && decision.QuoteAmount.Cmp(pair.MaxQuoteAmount) > 0) {
		return nil, reject(ReasonNotional)
	}

	decision.Reference = snapshot.Reference(decision.Type)
	if decision.Reference == nil || decision.Reference.Sign() == 0 {
		return nil, reject(ReasonNoSnapshot)
	}
	decision.Price = Price(decision.BaseAmount, pair.Base.Decimals, decision.QuoteAmount)
	if ExceedsSlippage(decision.Price, decision.Reference, pair.SlippageBps) {
		return nil, reject(ReasonSlippage)
	}

	if err := v.checkLedger(ctx, decision, now); err != nil {
		return nil, err
	}
	return decision, nil
}

//checkLedger runs the settlement engine's own authorization rules against current ledger
//state so that a fill doomed to revert is never hedged.
func (v *Validator) checkLedger(ctx context.Context, decision *Decision, now uint64) error {
	order := decision.Request.Order
	if order.Expiration() < now {
		return settlement.ErrOrderExpired
	}

	takerSession, err := v.ledger.SessionOf(ctx, decision.Taker)
	if err != nil {
		return errors.Wrap(reject(ReasonLedgerFailure), err.Error())
	}
	makerSession, err := v.ledger.SessionOf(ctx, decision.Maker)
	if err != nil {
		return errors.Wrap(reject(ReasonLedgerFailure), err.Error())
	}
	auth := settlement.NewAuthenticator(sessionSet{
		decision.Taker: takerSession,
		decision.Maker: makerSession,
	})
	if err := auth.AuthenticateMaker(now, v.sender, decision.Maker); err != nil {
		return err
	}
	decision.OrderHash, err = v.codec.Hash(order)
	if err != nil {
		return err
	}
	if err := auth.AuthenticateTaker(now, decision.OrderHash, decision.Request.Signature, decision.Taker, decision.Maker); err != nil {
		return err
	}

	invalidated, err := v.ledger.InvalidatedOrderRFQ(ctx, decision.Taker, order.OrderID())
	if err != nil {
		return errors.Wrap(reject(ReasonLedgerFailure), err.Error())
	}
	if invalidated {
		return invalidator.ErrAlreadyFilled
	}
	return nil
}

type sessionSet map[common.Address]sessions.Session

func (s sessionSet) Session(owner common.Address) sessions.Session {
	return s[owner]
}
