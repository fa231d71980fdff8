package swapcore

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const erc20ABIJSON = `[
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// CrocSwapDex entry point.
const ambientABIJSON = `[
 {"type":"function","name":"userCmd","stateMutability":"payable","inputs":[{"name":"callpath","type":"uint16"},{"name":"cmd","type":"bytes"}],"outputs":[{"name":"","type":"bytes"}]}
]`

const uniswapV3ABIJSON = `[
 {"type":"function","name":"exactInputSingle","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
   {"name":"tokenIn","type":"address"},
   {"name":"tokenOut","type":"address"},
   {"name":"fee","type":"uint24"},
   {"name":"recipient","type":"address"},
   {"name":"deadline","type":"uint256"},
   {"name":"amountIn","type":"uint256"},
   {"name":"amountOutMinimum","type":"uint256"},
   {"name":"sqrtPriceLimitX96","type":"uint160"}]}],
  "outputs":[{"name":"amountOut","type":"uint256"}]}
]`

const uniswapV2ABIJSON = `[
 {"type":"function","name":"swapExactTokensForTokens","stateMutability":"nonpayable","inputs":[
   {"name":"amountIn","type":"uint256"},
   {"name":"amountOutMin","type":"uint256"},
   {"name":"path","type":"address[]"},
   {"name":"to","type":"address"},
   {"name":"deadline","type":"uint256"}],
  "outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

var (
	erc20ABI     = mustABI(erc20ABIJSON)
	ambientABI   = mustABI(ambientABIJSON)
	uniswapV3ABI = mustABI(uniswapV3ABIJSON)
	uniswapV2ABI = mustABI(uniswapV2ABIJSON)

	// Ambient swap command layout, abi.encode'd and passed as userCmd's bytes.
	ambientSwapArgs = mustArgs(
		"address", "address", "uint256", "bool", "bool",
		"uint128", "uint16", "uint128", "uint128", "uint8",
	)
)

func mustABI(js string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(err)
	}
	return a
}

func mustArgs(types ...string) abi.Arguments {
	out := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		out = append(out, abi.Argument{Type: typ})
	}
	return out
}
