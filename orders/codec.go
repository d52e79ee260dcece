package orders

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/chain"
	contractAbis "github.com/CoinQuoter/CoinQuoter-SmartContracts-sub000/contract_abis"
)

var ErrInvalidAssetData = chain.NewError(chain.KindValidation, "invalid asset data")

const transferFromMethod = "transferFrom"

//Domain is the structured-data signing domain of the settlement contract.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

//AssetTransfer is a decoded transferFrom(from, to, amount) call.
type AssetTransfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

var rfqOrderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"RFQOrder": {
		{Name: "info", Type: "uint256"},
		{Name: "feeAmount", Type: "uint256"},
		{Name: "takerAsset", Type: "address"},
		{Name: "makerAsset", Type: "address"},
		{Name: "feeTokenAddress", Type: "address"},
		{Name: "frontendAddress", Type: "address"},
		{Name: "takerAssetData", Type: "bytes"},
		{Name: "makerAssetData", Type: "bytes"},
	},
}

//Codec encodes and decodes asset data and hashes orders under one signing domain.
type Codec struct {
	erc20           *abi.ABI
	domain          Domain
	typedDomain     apitypes.TypedDataDomain
	domainSeparator common.Hash
}

func NewCodec(abis *contractAbis.ABIs, domain Domain) (*Codec, error) {
	if domain.ChainID == nil {
		return nil, errors.New("signing domain needs a chain id")
	}
	typedDomain := apitypes.TypedDataDomain{
		Name:              domain.Name,
		Version:           domain.Version,
		ChainId:           (*gethmath.HexOrDecimal256)(new(big.Int).Set(domain.ChainID)),
		VerifyingContract: domain.VerifyingContract.Hex(),
	}
	typed := apitypes.TypedData{Types: rfqOrderTypes, PrimaryType: "RFQOrder", Domain: typedDomain}
	separator, err := typed.HashStruct("EIP712Domain", typedDomain.Map())
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash signing domain")
	}
	return &Codec{
		erc20:           abis.ERC20,
		domain:          domain,
		typedDomain:     typedDomain,
		domainSeparator: common.BytesToHash(separator),
	}, nil
}

func (c *Codec) Domain() Domain {
	return c.domain
}

func (c *Codec) DomainSeparator() common.Hash {
	return c.domainSeparator
}

func (c *Codec) EncodeAssetData(transfer AssetTransfer) ([]byte, error) {
	data, err := c.erc20.Pack(transferFromMethod, transfer.From, transfer.To, transfer.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode asset data")
	}
	return data, nil
}

func (c *Codec) DecodeAssetData(data []byte) (AssetTransfer, error) {
	method := c.erc20.Methods[transferFromMethod]
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return AssetTransfer{}, ErrInvalidAssetData
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(values) != 3 {
		return AssetTransfer{}, ErrInvalidAssetData
	}
	from, okFrom := values[0].(common.Address)
	to, okTo := values[1].(common.Address)
	amount, okAmount := values[2].(*big.Int)
	if !okFrom || !okTo || !okAmount {
		return AssetTransfer{}, ErrInvalidAssetData
	}
	return AssetTransfer{From: from, To: to, Amount: amount}, nil
}

//Legs decodes both asset data fields and checks that they mirror each other: the taker leg
//sends to the maker and the maker leg sends to the taker.
func (c *Codec) Legs(order *RFQOrder) (taker AssetTransfer, maker AssetTransfer, err error) {
	taker, err = c.DecodeAssetData(order.TakerAssetData)
	if err != nil {
		return taker, maker, err
	}
	maker, err = c.DecodeAssetData(order.MakerAssetData)
	if err != nil {
		return taker, maker, err
	}
	if taker.From != maker.To || taker.To != maker.From {
		return taker, maker, ErrInvalidAssetData
	}
	return taker, maker, nil
}

//Hash returns the EIP-712 digest the taker signs.
func (c *Codec) Hash(order *RFQOrder) (common.Hash, error) {
	typed := apitypes.TypedData{
		Types:       rfqOrderTypes,
		PrimaryType: "RFQOrder",
		Domain:      c.typedDomain,
		Message: apitypes.TypedDataMessage{
			"info":            (*gethmath.HexOrDecimal256)(nonNil(order.Info)),
			"feeAmount":       (*gethmath.HexOrDecimal256)(nonNil(order.FeeAmount)),
			"takerAsset":      order.TakerAsset.Hex(),
			"makerAsset":      order.MakerAsset.Hex(),
			"feeTokenAddress": order.FeeTokenAddress.Hex(),
			"frontendAddress": order.FrontendAddress.Hex(),
			"takerAssetData":  order.TakerAssetData,
			"makerAssetData":  order.MakerAssetData,
		},
	}
	structHash, err := typed.HashStruct("RFQOrder", typed.Message)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to hash rfq order")
	}
	return crypto.Keccak256Hash([]byte("\x19\x01"), c.domainSeparator.Bytes(), structHash), nil
}
