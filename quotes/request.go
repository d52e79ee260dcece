package quotes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/bus"
	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/orders"
)

//FillRequest is a decoded action/execute_order message.
type FillRequest struct {
	RequestID   string
	Channel     string
	Type        OrderType
	TakerAmount *big.Int
	MakerAmount *big.Int
	Signature   []byte
	Order       *orders.RFQOrder
	SessionKey  common.Address
}

func FillRequestFromMessage(channel string, msg bus.ExecuteOrder) (*FillRequest, error) {
	orderType, err := ParseOrderType(msg.Type)
	if err != nil {
		return nil, err
	}
	signature, err := hexutil.Decode(msg.LimitOrderSignature)
	if err != nil {
		return nil, errors.Wrap(err, "invalid limit order signature")
	}
	req := &FillRequest{
		RequestID:  msg.RequestID,
		Channel:    channel,
		Type:       orderType,
		Signature:  signature,
		Order:      &msg.LimitOrder,
		SessionKey: msg.SessionKey,
	}
	if req.Order.Info == nil {
		return nil, errors.New("limit order is missing")
	}
	if req.TakerAmount, err = parseAmount(msg.TakerAmount); err != nil {
		return nil, errors.Wrap(err, "invalid taker amount")
	}
	if req.MakerAmount, err = parseAmount(msg.MakerAmount); err != nil {
		return nil, errors.Wrap(err, "invalid maker amount")
	}
	return req, nil
}

//ToMessage is the inverse of FillRequestFromMessage.
func (r *FillRequest) ToMessage() bus.ExecuteOrder {
	msg := bus.ExecuteOrder{
		RequestID:           r.RequestID,
		Type:                string(r.Type),
		LimitOrderSignature: hexutil.Encode(r.Signature),
		LimitOrder:          *r.Order,
		SessionKey:          r.SessionKey,
	}
	if r.TakerAmount != nil {
		msg.TakerAmount = r.TakerAmount.String()
	}
	if r.MakerAmount != nil {
		msg.MakerAmount = r.MakerAmount.String()
	}
	return msg
}

//parseAmount reads an integer amount; an empty string means the amount was not sent.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("%q is not a non-negative integer", s)
	}
	return v, nil
}
