package swapcore

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUnits renders x with full token precision, e.g. 70000000 @ 6 -> "70.000000".
func FormatUnits(x *big.Int, decimals int) string {
	if x == nil {
		x = new(big.Int)
	}
	return decimal.NewFromBigInt(x, -int32(decimals)).StringFixed(int32(decimals))
}

// FormatEther renders wei as ether with 6 fractional digits.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -18).StringFixed(6)
}

func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -9).StringFixed(2)
}
