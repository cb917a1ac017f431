package chain

import (
	"fmt"
	"math/big"
	"strings"
)

const weiDecimals = 18

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(weiDecimals), nil)

// ToWei converts a decimal ether amount ("0.0001") to wei without float rounding.
func ToWei(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") || strings.HasPrefix(amount, "+") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > weiDecimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, amount, weiDecimals)
	}
	digits := whole + frac + strings.Repeat("0", weiDecimals-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return wei, nil
}

// FromWei renders wei as a decimal ether string with trailing zeros removed.
func FromWei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	sign := ""
	value := new(big.Int).Set(wei)
	if value.Sign() < 0 {
		sign = "-"
		value.Neg(value)
	}
	whole, frac := new(big.Int).QuoRem(value, weiPerEther, new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	fracText := frac.String()
	fracText = strings.Repeat("0", weiDecimals-len(fracText)) + fracText
	fracText = strings.TrimRight(fracText, "0")
	return sign + whole.String() + "." + fracText
}
