package swapcore

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/swap-runner/internal/registry"
)

func TestEncodeAmbientUserCmd(t *testing.T) {
	w := testWallet(t)
	v := ambientVenue()
	data, err := v.EncodeSwap(testIntent(w, 70_000_000))
	require.NoError(t, err)

	m := ambientABI.Methods["userCmd"]
	assert.Equal(t, m.ID, data[:4])
	outer, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, uint16(1), outer[0])

	args, err := ambientSwapArgs.Unpack(outer[1].([]byte))
	require.NoError(t, err)
	require.Len(t, args, 10)
	assert.Equal(t, tokA.Address, args[0])
	assert.Equal(t, tokB.Address, args[1])
	assert.Equal(t, big.NewInt(36000), args[2])
	assert.Equal(t, true, args[3])
	assert.Equal(t, true, args[4])
	assert.Equal(t, big.NewInt(70_000_000), args[5])
	assert.Equal(t, uint16(0), args[6])
	assert.Equal(t, maxUint128, args[7])
	assert.Equal(t, big.NewInt(1), args[8], "min out floors at 1")
	assert.Equal(t, uint8(0), args[9])
}

func TestEncodeUniswapV3ExactInputSingle(t *testing.T) {
	w := testWallet(t)
	v := Venue{Name: "crust", Kind: KindUniswapV3, FeeTier: 3000}
	in := testIntent(w, 5)
	data, err := v.EncodeSwap(in)
	require.NoError(t, err)

	m := uniswapV3ABI.Methods["exactInputSingle"]
	assert.Equal(t, m.ID, data[:4])
	out, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	p := *abi.ConvertType(out[0], new(exactInputSingleParams)).(*exactInputSingleParams)
	assert.Equal(t, tokA.Address, p.TokenIn)
	assert.Equal(t, tokB.Address, p.TokenOut)
	assert.Equal(t, big.NewInt(3000), p.Fee)
	assert.Equal(t, w.Address, p.Recipient)
	assert.Equal(t, big.NewInt(in.Deadline.Unix()), p.Deadline)
	assert.Equal(t, big.NewInt(5), p.AmountIn)
	assert.Zero(t, p.AmountOutMinimum.Sign())
	assert.Zero(t, p.SqrtPriceLimitX96.Sign())
}

func TestEncodeUniswapV2WithHop(t *testing.T) {
	w := testWallet(t)
	v := Venue{Name: "octoswap", Kind: KindUniswapV2}
	in := testIntent(w, 42)
	in.Pair = registry.Pair{In: tokA, Out: tokB}.WithHop(tokH)

	data, err := v.EncodeSwap(in)
	require.NoError(t, err)
	m := uniswapV2ABI.Methods["swapExactTokensForTokens"]
	assert.Equal(t, m.ID, data[:4])
	out, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), out[0])
	assert.Zero(t, out[1].(*big.Int).Sign())
	assert.Equal(t, []common.Address{tokA.Address, tokH.Address, tokB.Address}, out[2])
	assert.Equal(t, w.Address, out[3])
}

func TestEncodeRejects(t *testing.T) {
	w := testWallet(t)
	in := testIntent(w, 0)
	_, err := ambientVenue().EncodeSwap(in)
	assert.Error(t, err)

	in = testIntent(w, 1)
	in.Pair = in.Pair.WithHop(tokH)
	_, err = ambientVenue().EncodeSwap(in)
	assert.Error(t, err)
	_, err = Venue{Kind: KindUniswapV3, FeeTier: 3000}.EncodeSwap(in)
	assert.Error(t, err)

	in = testIntent(w, 1)
	in.Amount = new(big.Int).Lsh(big.NewInt(1), 130)
	_, err = ambientVenue().EncodeSwap(in)
	assert.Error(t, err)
}

func TestVenueValidate(t *testing.T) {
	require.NoError(t, ambientVenue().Validate())

	v := ambientVenue()
	v.PoolIndex = nil
	assert.ErrorIs(t, v.Validate(), ErrConfiguration)

	v = ambientVenue()
	v.GasMultiplierPct = 90
	assert.ErrorIs(t, v.Validate(), ErrConfiguration)

	v = ambientVenue()
	v.Kind = KindUniswapV3
	v.FeeTier = 1 << 24
	assert.ErrorIs(t, v.Validate(), ErrConfiguration)

	_, err := ParseKind("curve")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestEncodeApprove(t *testing.T) {
	router := ambientVenue().Router
	data := EncodeApprove(router)
	out, err := erc20ABI.Methods["approve"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, router, out[0])
	assert.Equal(t, MaxUint256, out[1])
}
