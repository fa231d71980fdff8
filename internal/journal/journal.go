// Package journal keeps an append-only record of every swap attempt.
package journal

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// Journal errors.
var (
	// ErrDuplicateKey is returned when an entry reuses a tx hash already recorded.
	ErrDuplicateKey = errors.New("duplicate key: journal is append-only")

	// ErrInvalidInput is returned when an entry misses required fields.
	ErrInvalidInput = errors.New("invalid input")
)

// Entry is one swap attempt. ID is assigned by the store.
type Entry struct {
	ID       int64
	Time     time.Time
	Wallet   string
	Venue    string
	TokenIn  string
	TokenOut string
	Hop      string
	Amount   *big.Int
	PerMille int64
	TxHash   string // empty when nothing was sent
	Outcome  string // "ok" or an error kind label
	Reason   string
	GasUsed  uint64
	FeePaid  *big.Int
}

func (e *Entry) validate() error {
	if e == nil || e.Wallet == "" || e.Venue == "" || e.Outcome == "" || e.Time.IsZero() {
		return ErrInvalidInput
	}
	return nil
}

// ListOptions narrows List. Zero value lists everything.
type ListOptions struct {
	Wallet string
	Limit  int
}

// Store is implemented by the memory and Postgres journals.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
	Close()
}
