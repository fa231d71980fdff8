package swapcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Error kinds. The scheduler branches on these with errors.Is.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrInsufficientGas     = errors.New("insufficient native balance for gas")
	ErrApprovalFailure     = errors.New("approval failed")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrNetwork             = errors.New("network error")
)

// SwapError is one failed attempt: a kind from the list above, a short reason for the log line,
// the tx hash if one was sent, and the underlying cause.
type SwapError struct {
	Kind   error
	Reason string
	TxHash common.Hash
	Err    error
}

func (e *SwapError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.TxHash != (common.Hash{}) {
		b.WriteString(" (tx ")
		b.WriteString(e.TxHash.Hex())
		b.WriteString(")")
	}
	return b.String()
}

func (e *SwapError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newSwapError(kind error, err error, format string, args ...any) *SwapError {
	return &SwapError{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// networkError wraps an RPC failure, tagging it with a classified reason.
func networkError(op string, err error) *SwapError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &SwapError{Kind: ErrNetwork, Reason: op + ": " + err.Error(), Err: err}
	}
	return &SwapError{Kind: ErrNetwork, Reason: op + ": " + Classify(err), Err: err}
}

// KindOf returns the sentinel kind of err, or nil when it carries none.
func KindOf(err error) error {
	for _, k := range []error{ErrConfiguration, ErrInsufficientBalance, ErrInsufficientGas,
		ErrApprovalFailure, ErrTransactionReverted, ErrNetwork} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindLabel is the short metrics/journal label for err.
func KindLabel(err error) string {
	switch KindOf(err) {
	case nil:
		if err == nil {
			return "ok"
		}
		return "unknown"
	case ErrConfiguration:
		return "configuration"
	case ErrInsufficientBalance:
		return "insufficient_balance"
	case ErrInsufficientGas:
		return "insufficient_gas"
	case ErrApprovalFailure:
		return "approval_failure"
	case ErrTransactionReverted:
		return "reverted"
	default:
		return "network"
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005")
}

func isRevertError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

// Classify returns a concise, user-facing reason for common RPC failures.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if isRateLimitError(err) {
		return "[RATE_LIMIT] provider throttled the request"
	}
	if isRevertError(err) {
		if idx := strings.Index(s, "execution reverted:"); idx >= 0 {
			if r := strings.TrimSpace(s[idx+len("execution reverted:"):]); r != "" {
				return "[REVERT] " + r
			}
		}
		return "[REVERT] execution reverted"
	}
	if strings.Contains(s, "insufficient funds") {
		return "[FUNDS] " + s
	}
	if strings.Contains(s, "nonce too low") || strings.Contains(s, "replacement transaction underpriced") {
		return "[NONCE] " + s
	}
	return "[RPC] " + s
}
