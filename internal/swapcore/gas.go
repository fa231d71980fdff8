package swapcore

import (
	"context"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeeParams is either an EIP-1559 tip/cap pair or a legacy gas price.
type FeeParams struct {
	Dynamic  bool
	TipCap   *big.Int
	FeeCap   *big.Int
	GasPrice *big.Int
}

// MaxCost is the worst-case wei spent by a tx of gasLimit under these fees.
func (f FeeParams) MaxCost(gasLimit uint64) *big.Int {
	price := f.GasPrice
	if f.Dynamic {
		price = f.FeeCap
	}
	if price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit))
}

func scalePct(x *big.Int, pct int64) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(x, big.NewInt(pct))
	return out.Quo(out, big.NewInt(100))
}

// SuggestFees prices a tx for venue v. A fixed venue price wins. Otherwise a head with a
// base fee yields tip = suggested tip, cap = 2*base + tip, both scaled by the multiplier;
// a head without one yields the suggested legacy price scaled.
func SuggestFees(ctx context.Context, c ChainClient, v Venue) (FeeParams, error) {
	return suggestFees(ctx, c, v, func(error, time.Duration) {})
}

func suggestFees(ctx context.Context, c ChainClient, v Venue, notify backoff.Notify) (FeeParams, error) {
	if v.FixedGasPrice != nil && v.FixedGasPrice.Sign() > 0 {
		return FeeParams{GasPrice: new(big.Int).Set(v.FixedGasPrice)}, nil
	}
	if v.LegacyPricing {
		return suggestLegacy(ctx, c, v, notify)
	}
	head, err := retryRead(ctx, notify, func() (*types.Header, error) { return c.HeaderByNumber(ctx, nil) })
	if err != nil {
		return FeeParams{}, networkError("latest header", err)
	}
	if head.BaseFee != nil {
		tip, err := retryRead(ctx, notify, func() (*big.Int, error) { return c.SuggestGasTipCap(ctx) })
		if err != nil {
			return FeeParams{}, networkError("suggest tip", err)
		}
		feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
		return FeeParams{
			Dynamic: true,
			TipCap:  scalePct(tip, v.GasMultiplierPct),
			FeeCap:  scalePct(feeCap, v.GasMultiplierPct),
		}, nil
	}
	return suggestLegacy(ctx, c, v, notify)
}

func suggestLegacy(ctx context.Context, c ChainClient, v Venue, notify backoff.Notify) (FeeParams, error) {
	gp, err := retryRead(ctx, notify, func() (*big.Int, error) { return c.SuggestGasPrice(ctx) })
	if err != nil {
		return FeeParams{}, networkError("suggest gas price", err)
	}
	return FeeParams{GasPrice: scalePct(gp, v.GasMultiplierPct)}, nil
}
