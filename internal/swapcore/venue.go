package swapcore

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Kind selects the router call shape.
type Kind string

const (
	KindAmbient   Kind = "ambient"    // CrocSwapDex userCmd
	KindUniswapV3 Kind = "uniswap-v3" // exactInputSingle
	KindUniswapV2 Kind = "uniswap-v2" // swapExactTokensForTokens
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAmbient, KindUniswapV3, KindUniswapV2:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown venue kind %q", ErrConfiguration, s)
}

const ambientSwapCallpath uint16 = 1

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Venue is one DEX deployment plus its gas policy.
type Venue struct {
	Name   string
	Kind   Kind
	Router common.Address

	PoolIndex *big.Int // ambient
	FeeTier   uint32   // uniswap-v3, e.g. 3000

	SwapGasLimit     uint64
	ApproveGasLimit  uint64
	GasMultiplierPct int64    // 150 = x1.5
	FixedGasPrice    *big.Int // forces a legacy tx at this price; nil = suggest
	LegacyPricing    bool     // legacy tx at the suggested price even when the head has a base fee
	Reserve          *big.Int // minimum native balance to attempt a swap

	Explorer string // tx URL prefix
}

// Validate checks the fields every encoder relies on.
func (v Venue) Validate() error {
	if _, err := ParseKind(string(v.Kind)); err != nil {
		return err
	}
	if v.Router == (common.Address{}) {
		return fmt.Errorf("%w: venue %s has no router", ErrConfiguration, v.Name)
	}
	if v.SwapGasLimit == 0 || v.ApproveGasLimit == 0 {
		return fmt.Errorf("%w: venue %s needs swap and approve gas limits", ErrConfiguration, v.Name)
	}
	if v.GasMultiplierPct < 100 {
		return fmt.Errorf("%w: venue %s gas multiplier %d%% below 100%%", ErrConfiguration, v.Name, v.GasMultiplierPct)
	}
	switch v.Kind {
	case KindAmbient:
		if v.PoolIndex == nil || v.PoolIndex.Sign() <= 0 {
			return fmt.Errorf("%w: ambient venue %s needs a pool index", ErrConfiguration, v.Name)
		}
	case KindUniswapV3:
		if v.FeeTier == 0 || v.FeeTier >= 1<<24 {
			return fmt.Errorf("%w: venue %s fee tier %d out of uint24 range", ErrConfiguration, v.Name, v.FeeTier)
		}
	}
	return nil
}

// TxLink renders an explorer URL, or the bare hash if no explorer is configured.
func (v Venue) TxLink(h common.Hash) string {
	if v.Explorer == "" {
		return h.Hex()
	}
	return v.Explorer + h.Hex()
}

// EncodeSwap builds router calldata for in.
func (v Venue) EncodeSwap(in SwapIntent) ([]byte, error) {
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("swap amount must be positive")
	}
	minOut := in.MinOut
	if minOut == nil {
		minOut = new(big.Int)
	}
	recipient := in.Wallet.Address
	deadline := big.NewInt(in.Deadline.Unix())

	switch v.Kind {
	case KindAmbient:
		if in.Pair.Hop != nil {
			return nil, fmt.Errorf("ambient venue does not route through %s", in.Pair.Hop.Symbol)
		}
		if in.Amount.BitLen() > 128 {
			return nil, fmt.Errorf("amount %s overflows uint128", in.Amount)
		}
		floor := minOut
		if floor.Sign() == 0 {
			floor = big.NewInt(1)
		}
		cmd, err := ambientSwapArgs.Pack(
			in.Pair.In.Address,  // base
			in.Pair.Out.Address, // quote
			v.PoolIndex,
			true, // isBuy
			true, // inBaseQty
			in.Amount,
			uint16(0), // tip
			maxUint128,
			floor,
			uint8(0), // reserveFlags
		)
		if err != nil {
			return nil, fmt.Errorf("pack ambient cmd: %w", err)
		}
		return ambientABI.Pack("userCmd", ambientSwapCallpath, cmd)

	case KindUniswapV3:
		if in.Pair.Hop != nil {
			return nil, fmt.Errorf("exactInputSingle does not route through %s", in.Pair.Hop.Symbol)
		}
		params := exactInputSingleParams{
			TokenIn:           in.Pair.In.Address,
			TokenOut:          in.Pair.Out.Address,
			Fee:               new(big.Int).SetUint64(uint64(v.FeeTier)),
			Recipient:         recipient,
			Deadline:          deadline,
			AmountIn:          in.Amount,
			AmountOutMinimum:  minOut,
			SqrtPriceLimitX96: new(big.Int),
		}
		return uniswapV3ABI.Pack("exactInputSingle", params)

	case KindUniswapV2:
		return uniswapV2ABI.Pack("swapExactTokensForTokens", in.Amount, minOut, in.Pair.Path(), recipient, deadline)
	}
	return nil, fmt.Errorf("%w: unknown venue kind %q", ErrConfiguration, v.Kind)
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}
