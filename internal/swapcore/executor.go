package swapcore

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/ligun0805/swap-runner/internal/registry"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

// SwapIntent is a fully planned swap, ready to execute.
type SwapIntent struct {
	Wallet   *wallet.Wallet
	Pair     registry.Pair
	Amount   *big.Int // smallest units, > 0
	MinOut   *big.Int // nil or 0 means no slippage floor
	Deadline time.Time
	PerMille int64    // share of Balance drawn
	Balance  *big.Int // input balance at planning time
}

// SwapResult describes a confirmed swap.
type SwapResult struct {
	TxHash          common.Hash
	ApprovalTx      *common.Hash
	BlockNumber     uint64
	GasUsed         uint64
	FeePaid         *big.Int // gasUsed * effectiveGasPrice
	RemainingNative *big.Int // nil when the post-swap read failed
	Success         bool
}

// Stage marks executor progress for the caller's state machine.
type Stage int

const (
	StageApproving Stage = iota + 1
	StageSubmitting
	StageConfirming
)

func (s Stage) String() string {
	switch s {
	case StageApproving:
		return "Approving"
	case StageSubmitting:
		return "Submitting"
	case StageConfirming:
		return "Confirming"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Executor signs and submits swaps for one venue. Calls are sequential; nonces are read
// fresh for every transaction.
type Executor struct {
	client  ChainClient
	chainID *big.Int
	venue   Venue
	log     zerolog.Logger
}

func NewExecutor(client ChainClient, chainID *big.Int, venue Venue, log zerolog.Logger) (*Executor, error) {
	if err := venue.Validate(); err != nil {
		return nil, err
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: chain id must be positive", ErrConfiguration)
	}
	return &Executor{
		client:  client,
		chainID: new(big.Int).Set(chainID),
		venue:   venue,
		log:     log.With().Str("venue", venue.Name).Logger(),
	}, nil
}

func (e *Executor) Venue() Venue { return e.venue }

func (e *Executor) notify(op string) backoff.Notify {
	return func(err error, next time.Duration) {
		e.log.Debug().Str("op", op).Str("reason", Classify(err)).Dur("retry_in", next).Msg("rpc read failed, retrying")
	}
}

// CheckReserve fails with ErrInsufficientGas when owner holds less native coin than the venue reserve.
func (e *Executor) CheckReserve(ctx context.Context, owner common.Address) (*big.Int, error) {
	native, err := e.NativeBalance(ctx, owner)
	if err != nil {
		return nil, err
	}
	if e.venue.Reserve != nil && native.Cmp(e.venue.Reserve) < 0 {
		return native, newSwapError(ErrInsufficientGas, nil, "native balance %s below reserve %s",
			FormatEther(native), FormatEther(e.venue.Reserve))
	}
	return native, nil
}

// Execute approves if needed, submits the swap and waits for its receipt. onStage may be nil.
func (e *Executor) Execute(ctx context.Context, in SwapIntent, onStage func(Stage)) (SwapResult, error) {
	if onStage == nil {
		onStage = func(Stage) {}
	}
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return SwapResult{}, newSwapError(ErrInsufficientBalance, nil, "nothing to swap")
	}
	w := in.Wallet
	if _, err := e.CheckReserve(ctx, w.Address); err != nil {
		return SwapResult{}, err
	}
	bal, err := e.TokenBalance(ctx, in.Pair.In.Address, w.Address)
	if err != nil {
		return SwapResult{}, err
	}
	if in.Amount.Cmp(bal) > 0 {
		return SwapResult{}, newSwapError(ErrInsufficientBalance, nil, "%s balance %s below amount %s", in.Pair.In.Symbol,
			FormatUnits(bal, in.Pair.In.Decimals), FormatUnits(in.Amount, in.Pair.In.Decimals))
	}

	var res SwapResult
	onStage(StageApproving)
	approval, err := e.EnsureAllowance(ctx, w, in.Pair.In)
	if err != nil {
		return res, err
	}
	res.ApprovalTx = approval

	data, err := e.venue.EncodeSwap(in)
	if err != nil {
		return res, newSwapError(ErrConfiguration, err, "encode swap: %v", err)
	}
	onStage(StageSubmitting)
	tx, err := e.send(ctx, w, e.venue.SwapGasLimit, data)
	if err != nil {
		kind := ErrNetwork
		if isRevertError(err) {
			kind = ErrTransactionReverted
		}
		return res, &SwapError{Kind: kind, Reason: "send swap: " + Classify(err), Err: err}
	}
	res.TxHash = tx.Hash()
	e.log.Debug().Str("wallet", w.Short()).Str("tx", tx.Hash().Hex()).Msg("swap sent")

	onStage(StageConfirming)
	rcpt, err := bind.WaitMined(ctx, e.client, tx)
	if err != nil {
		return res, &SwapError{Kind: ErrNetwork, Reason: "wait receipt: " + Classify(err), TxHash: tx.Hash(), Err: err}
	}
	if rcpt.BlockNumber != nil {
		res.BlockNumber = rcpt.BlockNumber.Uint64()
	}
	res.GasUsed = rcpt.GasUsed
	res.FeePaid = feePaid(rcpt, tx)
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return res, &SwapError{Kind: ErrTransactionReverted, Reason: "[REVERT] receipt status 0", TxHash: tx.Hash()}
	}
	res.Success = true

	if native, err := e.NativeBalance(ctx, w.Address); err == nil {
		res.RemainingNative = native
	} else {
		e.log.Warn().Str("wallet", w.Short()).Err(err).Msg("post-swap balance read failed")
	}
	return res, nil
}

// EnsureAllowance approves MaxUint256 to the router when the current allowance is zero.
// Any non-zero allowance is left alone. Returns the approval hash when one was sent.
func (e *Executor) EnsureAllowance(ctx context.Context, w *wallet.Wallet, token registry.Token) (*common.Hash, error) {
	cur, err := e.Allowance(ctx, token.Address, w.Address, e.venue.Router)
	if err != nil {
		return nil, &SwapError{Kind: ErrApprovalFailure, Reason: "read allowance: " + Classify(err), Err: err}
	}
	if cur.Sign() > 0 {
		return nil, nil
	}
	tx, err := e.send(ctx, w, e.venue.ApproveGasLimit, EncodeApprove(e.venue.Router), withTo(token.Address))
	if err != nil {
		return nil, &SwapError{Kind: ErrApprovalFailure, Reason: "send approve: " + Classify(err), Err: err}
	}
	h := tx.Hash()
	e.log.Info().Str("wallet", w.Short()).Str("token", token.Symbol).Str("tx", e.venue.TxLink(h)).Msg("approval sent")
	rcpt, err := bind.WaitMined(ctx, e.client, tx)
	if err != nil {
		return &h, &SwapError{Kind: ErrApprovalFailure, Reason: "wait approve receipt: " + Classify(err), TxHash: h, Err: err}
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return &h, &SwapError{Kind: ErrApprovalFailure, Reason: "[REVERT] approve receipt status 0", TxHash: h}
	}
	return &h, nil
}

// ApproveAll runs EnsureAllowance for every token, continuing past failures.
func (e *Executor) ApproveAll(ctx context.Context, w *wallet.Wallet, tokens []registry.Token) error {
	var errs []error
	for _, t := range tokens {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := e.EnsureAllowance(ctx, w, t); err != nil {
			e.log.Warn().Str("wallet", w.Short()).Str("token", t.Symbol).Err(err).Msg("approve failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.Symbol, err))
		}
	}
	return errors.Join(errs...)
}

type sendOpt func(*common.Address)

func withTo(a common.Address) sendOpt { return func(to *common.Address) { *to = a } }

// send prices, signs and broadcasts a zero-value call. The target defaults to the router.
func (e *Executor) send(ctx context.Context, w *wallet.Wallet, gasLimit uint64, data []byte, opts ...sendOpt) (*types.Transaction, error) {
	to := e.venue.Router
	for _, o := range opts {
		o(&to)
	}
	fees, err := suggestFees(ctx, e.client, e.venue, e.notify("fees"))
	if err != nil {
		return nil, err
	}
	nonce, err := retryRead(ctx, e.notify("nonce"), func() (uint64, error) { return e.client.PendingNonceAt(ctx, w.Address) })
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	signed, err := signTx(buildTx(e.chainID, nonce, to, gasLimit, fees, data), e.chainID, w.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func feePaid(rcpt *types.Receipt, tx *types.Transaction) *big.Int {
	price := rcpt.EffectiveGasPrice
	if price == nil || price.Sign() == 0 {
		price = tx.GasPrice()
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(rcpt.GasUsed))
}
