package orders

import (
	"encoding/json"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
)

var lowMask = new(big.Int).SetUint64(math.MaxUint64)

//RFQOrder is a signed offer addressed to a single counterparty. The asset data fields are
//ERC20 transferFrom calldata: takerAssetData moves takerAsset from the taker to the maker,
//makerAssetData moves makerAsset from the maker to the taker.
type RFQOrder struct {
	Info            *big.Int
	FeeAmount       *big.Int
	TakerAsset      common.Address
	MakerAsset      common.Address
	FeeTokenAddress common.Address
	FrontendAddress common.Address
	TakerAssetData  []byte
	MakerAssetData  []byte
}

//PackInfo puts the order id in the low 64 bits and the expiration timestamp above them.
func PackInfo(orderID uint64, expiration uint64) *big.Int {
	info := new(big.Int).SetUint64(expiration)
	info.Lsh(info, 64)
	return info.Or(info, new(big.Int).SetUint64(orderID))
}

func OrderIDOf(info *big.Int) uint64 {
	if info == nil {
		return 0
	}
	return new(big.Int).And(info, lowMask).Uint64()
}

//ExpirationOf returns the high bits of info, saturated to the uint64 range.
func ExpirationOf(info *big.Int) uint64 {
	if info == nil {
		return 0
	}
	expiration := new(big.Int).Rsh(info, 64)
	if !expiration.IsUint64() {
		return math.MaxUint64
	}
	return expiration.Uint64()
}

func (o *RFQOrder) OrderID() uint64 {
	return OrderIDOf(o.Info)
}

func (o *RFQOrder) Expiration() uint64 {
	return ExpirationOf(o.Info)
}

func (o *RFQOrder) Fee() *big.Int {
	if o.FeeAmount == nil {
		return new(big.Int)
	}
	return o.FeeAmount
}

type rfqOrderJSON struct {
	Info            *gethmath.HexOrDecimal256 `json:"info"`
	FeeAmount       *gethmath.HexOrDecimal256 `json:"feeAmount"`
	TakerAsset      common.Address            `json:"takerAsset"`
	MakerAsset      common.Address            `json:"makerAsset"`
	FeeTokenAddress common.Address            `json:"feeTokenAddress"`
	FrontendAddress common.Address            `json:"frontendAddress"`
	TakerAssetData  hexutil.Bytes             `json:"takerAssetData"`
	MakerAssetData  hexutil.Bytes             `json:"makerAssetData"`
}

func (o RFQOrder) MarshalJSON() ([]byte, error) {
	return json.Marshal(rfqOrderJSON{
		Info:            (*gethmath.HexOrDecimal256)(nonNil(o.Info)),
		FeeAmount:       (*gethmath.HexOrDecimal256)(nonNil(o.FeeAmount)),
		TakerAsset:      o.TakerAsset,
		MakerAsset:      o.MakerAsset,
		FeeTokenAddress: o.FeeTokenAddress,
		FrontendAddress: o.FrontendAddress,
		TakerAssetData:  o.TakerAssetData,
		MakerAssetData:  o.MakerAssetData,
	})
}

func (o *RFQOrder) UnmarshalJSON(data []byte) error {
	var raw rfqOrderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "failed to decode rfq order")
	}
	if raw.Info == nil {
		return errors.New("rfq order is missing info")
	}
	o.Info = new(big.Int).Set((*big.Int)(raw.Info))
	o.FeeAmount = new(big.Int)
	if raw.FeeAmount != nil {
		o.FeeAmount.Set((*big.Int)(raw.FeeAmount))
	}
	o.TakerAsset = raw.TakerAsset
	o.MakerAsset = raw.MakerAsset
	o.FeeTokenAddress = raw.FeeTokenAddress
	o.FrontendAddress = raw.FrontendAddress
	o.TakerAssetData = raw.TakerAssetData
	o.MakerAssetData = raw.MakerAssetData
	return nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
