package swapcore

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// MaxUint256 is the unlimited approval amount.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// EncodeApprove builds approve(spender, MaxUint256) calldata.
func EncodeApprove(spender common.Address) []byte {
	data, err := erc20ABI.Pack("approve", spender, MaxUint256)
	if err != nil {
		panic(err) // static types, cannot fail
	}
	return data
}

// callUint256 runs a view returning a single uint256. Empty return data reads as zero.
func (e *Executor) callUint256(ctx context.Context, token common.Address, method string, args ...any) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &token, Data: data}
	ret, err := retryRead(ctx, e.notify(method), func() ([]byte, error) { return e.client.CallContract(ctx, msg, nil) })
	if err != nil {
		return nil, err
	}
	if len(ret) == 0 {
		return new(big.Int), nil
	}
	out, err := erc20ABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("[UNSUPPORTED] %s return: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("[UNSUPPORTED] %s returned %T", method, out[0])
	}
	return v, nil
}

// TokenBalance reads balanceOf(owner).
func (e *Executor) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	v, err := e.callUint256(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, networkError("balanceOf", err)
	}
	return v, nil
}

// Allowance reads allowance(owner, spender).
func (e *Executor) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	v, err := e.callUint256(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, networkError("allowance", err)
	}
	return v, nil
}

// NativeBalance reads the latest native balance of owner.
func (e *Executor) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	v, err := retryRead(ctx, e.notify("balance"), func() (*big.Int, error) { return e.client.BalanceAt(ctx, owner, nil) })
	if err != nil {
		return nil, networkError("native balance", err)
	}
	return v, nil
}
