package quotes

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

//ToUnits converts a decimal string such as "1.5" to token smallest units. Values that do
//not fit the token's decimals exactly are refused rather than rounded.
func ToUnits(value string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid decimal %q", value)
	}
	if d.IsNegative() {
		return nil, errors.Errorf("negative amount %q", value)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.Errorf("%q has more than %d decimals", value, decimals)
	}
	return scaled.BigInt(), nil
}

//FromUnits renders smallest units as a decimal string.
func FromUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

//PercentToBps turns a percentage string into basis points, e.g. "0.5" into 50.
func PercentToBps(percent string) (uint64, error) {
	if percent == "" {
		return 0, nil
	}
	bps, err := ToUnits(percent, 2)
	if err != nil {
		return 0, err
	}
	if !bps.IsUint64() {
		return 0, errors.Errorf("percentage %q out of range", percent)
	}
	return bps.Uint64(), nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

//Price is the quote amount paid per whole base token, in quote smallest units, rounded down.
func Price(baseAmount *big.Int, baseDecimals uint8, quoteAmount *big.Int) *big.Int {
	if baseAmount.Sign() == 0 {
		return new(big.Int)
	}
	price := new(big.Int).Mul(quoteAmount, pow10(baseDecimals))
	return price.Quo(price, baseAmount)
}

//QuoteFor is the quote amount for baseAmount at price, rounded down.
func QuoteFor(baseAmount *big.Int, baseDecimals uint8, price *big.Int) *big.Int {
	quote := new(big.Int).Mul(baseAmount, price)
	return quote.Quo(quote, pow10(baseDecimals))
}

//BaseFor is the base amount bought by quoteAmount at price, rounded down.
func BaseFor(quoteAmount *big.Int, baseDecimals uint8, price *big.Int) *big.Int {
	if price.Sign() == 0 {
		return new(big.Int)
	}
	base := new(big.Int).Mul(quoteAmount, pow10(baseDecimals))
	return base.Quo(base, price)
}

//ExceedsSlippage reports |price-reference| / reference > bps / 10000 in integer arithmetic.
func ExceedsSlippage(price *big.Int, reference *big.Int, bps uint64) bool {
	deviation := new(big.Int).Sub(price, reference)
	deviation.Abs(deviation).Mul(deviation, big.NewInt(10000))
	allowed := new(big.Int).Mul(reference, new(big.Int).SetUint64(bps))
	return deviation.Cmp(allowed) > 0
}

//ApplySpread moves price up by bps when up is set and down otherwise, rounding down.
func ApplySpread(price *big.Int, bps uint64, up bool) *big.Int {
	factor := int64(10000) - int64(bps)
	if up {
		factor = int64(10000) + int64(bps)
	}
	out := new(big.Int).Mul(price, big.NewInt(factor))
	return out.Quo(out, big.NewInt(10000))
}

//PriceToUnits converts a decimal price to quote smallest units, dropping digits beyond the
//token's precision.
func PriceToUnits(value string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid price %q", value)
	}
	if d.IsNegative() {
		return nil, errors.Errorf("negative price %q", value)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}
