package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	feeLedger "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/fee_ledger"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/invalidator"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/sessions"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/tokens"
)

//Engine settles RFQ orders. It must only be called from inside a runtime transaction.
type Engine struct {
	address     common.Address
	abi         *abi.ABI
	codec       *orders.Codec
	tokens      *tokens.Ledger
	sessions    *sessions.Registry
	invalidator *invalidator.Ledger
	fees        *feeLedger.Ledger
	auth        *Authenticator
}

func NewEngine(address common.Address, contractABI *abi.ABI, codec *orders.Codec, tokenLedger *tokens.Ledger, registry *sessions.Registry, invalidations *invalidator.Ledger, fees *feeLedger.Ledger) *Engine {
	return &Engine{
		address:     address,
		abi:         contractABI,
		codec:       codec,
		tokens:      tokenLedger,
		sessions:    registry,
		invalidator: invalidations,
		fees:        fees,
		auth:        NewAuthenticator(registry),
	}
}

//FillOrderRFQ fills order, fully when both amounts are zero, otherwise proportionally to the
//one nonzero amount. Any failure leaves the ledger as it was once the transaction reverts.
func (e *Engine) FillOrderRFQ(tx *chain.Tx, order *orders.RFQOrder, signature []byte, takingAmount *big.Int, makingAmount *big.Int) (*big.Int, *big.Int, error) {
	takingAmount = nonNil(takingAmount)
	makingAmount = nonNil(makingAmount)

	if order.Expiration() < tx.Time {
		return nil, nil, ErrOrderExpired
	}
	if takingAmount.Sign() < 0 || makingAmount.Sign() < 0 || (takingAmount.Sign() != 0 && makingAmount.Sign() != 0) {
		return nil, nil, ErrOneAmountShouldBeZero
	}

	takerLeg, makerLeg, err := e.codec.Legs(order)
	if err != nil {
		return nil, nil, err
	}
	taker, maker := takerLeg.From, makerLeg.From

	if err := e.auth.AuthenticateMaker(tx.Time, tx.Sender, maker); err != nil {
		return nil, nil, err
	}
	orderHash, err := e.codec.Hash(order)
	if err != nil {
		return nil, nil, err
	}
	if err := e.auth.AuthenticateTaker(tx.Time, orderHash, signature, taker, maker); err != nil {
		return nil, nil, err
	}

	if e.invalidator.IsInvalidated(taker, order.OrderID()) {
		return nil, nil, invalidator.ErrAlreadyFilled
	}

	filledTaking, filledMaking, err := FillAmounts(takerLeg.Amount, makerLeg.Amount, takingAmount, makingAmount)
	if err != nil {
		return nil, nil, err
	}

	if err := e.settleLeg(tx, order.TakerAsset, order.TakerAssetData, takerLeg, filledTaking); err != nil {
		return nil, nil, err
	}
	if err := e.settleLeg(tx, order.MakerAsset, order.MakerAssetData, makerLeg, filledMaking); err != nil {
		return nil, nil, err
	}

	if err := e.fees.Collect(tx, maker, order.FeeTokenAddress, order.Fee(), order.FrontendAddress, taker); err != nil {
		return nil, nil, err
	}

	if err := e.invalidator.Invalidate(tx, taker, order.OrderID()); err != nil {
		return nil, nil, err
	}
	e.sessions.IncrementTxCount(tx, taker)
	e.sessions.IncrementTxCount(tx, maker)

	if err := tx.EmitEvent(e.address, e.abi, "OrderFilledRFQ", orderHash, filledTaking, filledMaking); err != nil {
		return nil, nil, err
	}
	return filledTaking, filledMaking, nil
}

//settleLeg executes a leg's asset data against its token. A partial fill re-encodes the
//transfer with the filled amount.
func (e *Engine) settleLeg(tx *chain.Tx, asset common.Address, assetData []byte, leg orders.AssetTransfer, filled *big.Int) error {
	calldata := assetData
	if filled.Cmp(leg.Amount) != 0 {
		leg.Amount = filled
		var err error
		if calldata, err = e.codec.EncodeAssetData(leg); err != nil {
			return err
		}
	}
	return e.tokens.Call(tx, asset, e.address, calldata)
}

//FillAmounts scales the embedded order amounts to the requested side, rounding down.
func FillAmounts(orderTaking *big.Int, orderMaking *big.Int, takingAmount *big.Int, makingAmount *big.Int) (*big.Int, *big.Int, error) {
	if orderTaking.Sign() <= 0 || orderMaking.Sign() <= 0 {
		return nil, nil, ErrZeroFill
	}

	var filledTaking, filledMaking *big.Int
	switch {
	case takingAmount.Sign() == 0 && makingAmount.Sign() == 0:
		filledTaking = new(big.Int).Set(orderTaking)
		filledMaking = new(big.Int).Set(orderMaking)
	case takingAmount.Sign() != 0:
		if takingAmount.Cmp(orderTaking) > 0 {
			return nil, nil, ErrTakingAmountExceeded
		}
		filledTaking = new(big.Int).Set(takingAmount)
		filledMaking = new(big.Int).Mul(takingAmount, orderMaking)
		filledMaking.Quo(filledMaking, orderTaking)
	default:
		if makingAmount.Cmp(orderMaking) > 0 {
			return nil, nil, ErrMakingAmountExceeded
		}
		filledMaking = new(big.Int).Set(makingAmount)
		filledTaking = new(big.Int).Mul(makingAmount, orderTaking)
		filledTaking.Quo(filledTaking, orderMaking)
	}

	if filledTaking.Sign() == 0 || filledMaking.Sign() == 0 {
		return nil, nil, ErrZeroFill
	}
	return filledTaking, filledMaking, nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
