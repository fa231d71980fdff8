package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokens() []Token {
	return []Token{
		{Symbol: "USDC", Address: common.HexToAddress("0xf817257fed379853cDe0fa4F97AB987181B1E5Ea"), Decimals: 6},
		{Symbol: "WMON", Address: common.HexToAddress("0x760AfE86e5de5fa0Ee542fc7B7B713e1c5425701"), Decimals: 18},
		{Symbol: "CHOG", Address: common.HexToAddress("0xE0590015A873bF326bd645c3E1266d4db41C4E6B"), Decimals: 18},
	}
}

func TestNewSortsSymbols(t *testing.T) {
	r, err := New(testTokens())
	require.NoError(t, err)
	assert.Equal(t, []string{"CHOG", "USDC", "WMON"}, r.Symbols())
	assert.Equal(t, 3, r.Len())

	usdc, ok := r.Lookup("USDC")
	require.True(t, ok)
	assert.Equal(t, 6, usdc.Decimals)

	byAddr, ok := r.ByAddress(usdc.Address)
	require.True(t, ok)
	assert.Equal(t, "USDC", byAddr.Symbol)
}

func TestNewRejectsBadTokens(t *testing.T) {
	cases := map[string][]Token{
		"empty":        nil,
		"dup symbol":   {testTokens()[0], {Symbol: "USDC", Address: common.HexToAddress("0x01"), Decimals: 6}},
		"dup address":  {testTokens()[0], {Symbol: "USDX", Address: testTokens()[0].Address, Decimals: 6}},
		"zero address": {{Symbol: "NOPE", Decimals: 18}},
		"bad decimals": {{Symbol: "BIG", Address: common.HexToAddress("0x02"), Decimals: 99}},
		"blank symbol": {{Symbol: "  ", Address: common.HexToAddress("0x03"), Decimals: 18}},
	}
	for name, toks := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(toks)
			assert.Error(t, err)
		})
	}
}

func TestPairs(t *testing.T) {
	r, err := New(testTokens())
	require.NoError(t, err)

	pairs, err := r.Pairs([][2]string{{"CHOG", "USDC"}, {"USDC", "WMON"}})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "CHOG -> USDC", pairs[0].String())

	_, err = r.Pairs([][2]string{{"CHOG", "DAK"}})
	assert.ErrorIs(t, err, ErrUnknownToken)

	_, err = r.Pairs([][2]string{{"CHOG", "CHOG"}})
	assert.Error(t, err)
}

func TestPermutations(t *testing.T) {
	r, err := New(testTokens())
	require.NoError(t, err)

	perms := r.Permutations()
	assert.Len(t, perms, 6)
	seen := map[string]bool{}
	for _, p := range perms {
		assert.NotEqual(t, p.In.Symbol, p.Out.Symbol)
		seen[p.String()] = true
	}
	assert.Len(t, seen, 6)
}

func TestWithHop(t *testing.T) {
	r, err := New(testTokens())
	require.NoError(t, err)
	chog, _ := r.Lookup("CHOG")
	usdc, _ := r.Lookup("USDC")
	wmon, _ := r.Lookup("WMON")

	p := Pair{In: chog, Out: usdc}.WithHop(wmon)
	require.NotNil(t, p.Hop)
	assert.Equal(t, []common.Address{chog.Address, wmon.Address, usdc.Address}, p.Path())
	assert.Equal(t, "CHOG -> WMON -> USDC", p.String())

	same := Pair{In: wmon, Out: usdc}.WithHop(wmon)
	assert.Nil(t, same.Hop)
	assert.Len(t, same.Path(), 2)
}
