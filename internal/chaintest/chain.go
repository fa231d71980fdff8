// Package chaintest is an in-memory EVM stand-in for executor and scheduler tests.
// It understands the ERC-20 selectors the executor uses and mines every tx instantly.
package chaintest

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	selBalanceOf = common.FromHex("0x70a08231")
	selAllowance = common.FromHex("0xdd62ed3e")
	selApprove   = common.FromHex("0x095ea7b3")
)

// Chain is safe for concurrent use. Zero value is not usable; call New.
type Chain struct {
	mu sync.Mutex

	BaseFee  *big.Int // nil = pre-1559 head
	Tip      *big.Int
	GasPrice *big.Int
	GasUsed  uint64

	// Revert decides the receipt status of a non-approve tx. Nil means success.
	Revert func(tx *types.Transaction) bool
	// RevertApprove makes approve receipts fail.
	RevertApprove bool
	// SendErr, when set, is returned by SendTransaction for non-approve txs.
	SendErr error
	// BalanceErr, when set, fails native balance reads.
	BalanceErr error

	native     map[common.Address]*big.Int
	tokens     map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[[2]common.Address]*big.Int
	nonces     map[common.Address]uint64
	receipts   map[common.Hash]*types.Receipt
	block      uint64

	Sent  []*types.Transaction
	Calls map[string]int
}

func New() *Chain {
	return &Chain{
		Tip:        big.NewInt(1_000_000_000),
		GasPrice:   big.NewInt(50_000_000_000),
		BaseFee:    big.NewInt(50_000_000_000),
		GasUsed:    150_000,
		native:     map[common.Address]*big.Int{},
		tokens:     map[common.Address]map[common.Address]*big.Int{},
		allowances: map[common.Address]map[[2]common.Address]*big.Int{},
		nonces:     map[common.Address]uint64{},
		receipts:   map[common.Hash]*types.Receipt{},
		Calls:      map[string]int{},
	}
}

func (c *Chain) SetNative(owner common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.native[owner] = new(big.Int).Set(wei)
}

func (c *Chain) Native(owner common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nativeOf(owner)
}

func (c *Chain) SetToken(token, owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens[token] == nil {
		c.tokens[token] = map[common.Address]*big.Int{}
	}
	c.tokens[token][owner] = new(big.Int).Set(amount)
}

func (c *Chain) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setAllowance(token, owner, spender, amount)
}

func (c *Chain) Allowance(token, owner, spender common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v := c.allowances[token][[2]common.Address{owner, spender}]; v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// SentCount returns how many txs were accepted.
func (c *Chain) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// CallCount returns how many times method was hit.
func (c *Chain) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

func (c *Chain) setAllowance(token, owner, spender common.Address, amount *big.Int) {
	if c.allowances[token] == nil {
		c.allowances[token] = map[[2]common.Address]*big.Int{}
	}
	c.allowances[token][[2]common.Address{owner, spender}] = new(big.Int).Set(amount)
}

func (c *Chain) nativeOf(owner common.Address) *big.Int {
	if v := c.native[owner]; v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (c *Chain) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["BalanceAt"]++
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	return c.nativeOf(account), nil
}

func (c *Chain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["CallContract"]++
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("execution reverted")
	}
	token, sel, args := *msg.To, msg.Data[:4], msg.Data[4:]
	switch {
	case bytes.Equal(sel, selBalanceOf) && len(args) >= 32:
		owner := common.BytesToAddress(args[:32])
		v := c.tokens[token][owner]
		if v == nil {
			v = new(big.Int)
		}
		return common.LeftPadBytes(v.Bytes(), 32), nil
	case bytes.Equal(sel, selAllowance) && len(args) >= 64:
		key := [2]common.Address{common.BytesToAddress(args[:32]), common.BytesToAddress(args[32:64])}
		v := c.allowances[token][key]
		if v == nil {
			v = new(big.Int)
		}
		return common.LeftPadBytes(v.Bytes(), 32), nil
	}
	return nil, errors.New("execution reverted: unknown selector")
}

func (c *Chain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (c *Chain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["HeaderByNumber"]++
	h := &types.Header{Number: new(big.Int).SetUint64(c.block)}
	if c.BaseFee != nil {
		h.BaseFee = new(big.Int).Set(c.BaseFee)
	}
	return h, nil
}

func (c *Chain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.Tip), nil
}

func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.GasPrice), nil
}

func (c *Chain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

func (c *Chain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls["SendTransaction"]++
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return err
	}
	approve := len(tx.Data()) >= 4+64 && bytes.Equal(tx.Data()[:4], selApprove)
	if !approve && c.SendErr != nil {
		return c.SendErr
	}
	c.Sent = append(c.Sent, tx)
	c.nonces[from]++
	c.block++

	price := c.effectivePrice(tx)
	status := types.ReceiptStatusSuccessful
	switch {
	case approve && c.RevertApprove:
		status = types.ReceiptStatusFailed
	case approve:
		spender := common.BytesToAddress(tx.Data()[4:36])
		amount := new(big.Int).SetBytes(tx.Data()[36:68])
		c.setAllowance(*tx.To(), from, spender, amount)
	case c.Revert != nil && c.Revert(tx):
		status = types.ReceiptStatusFailed
	}
	if status == types.ReceiptStatusSuccessful {
		fee := new(big.Int).Mul(price, new(big.Int).SetUint64(c.GasUsed))
		c.native[from] = new(big.Int).Sub(c.nativeOf(from), fee)
	}
	c.receipts[tx.Hash()] = &types.Receipt{
		Status:            status,
		TxHash:            tx.Hash(),
		GasUsed:           c.GasUsed,
		EffectiveGasPrice: price,
		BlockNumber:       new(big.Int).SetUint64(c.block),
	}
	return nil
}

func (c *Chain) effectivePrice(tx *types.Transaction) *big.Int {
	if tx.Type() == types.LegacyTxType || c.BaseFee == nil {
		return new(big.Int).Set(tx.GasPrice())
	}
	p := new(big.Int).Add(c.BaseFee, tx.GasTipCap())
	if p.Cmp(tx.GasFeeCap()) > 0 {
		p.Set(tx.GasFeeCap())
	}
	return p
}

func (c *Chain) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}
