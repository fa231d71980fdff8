package journal

import (
	"context"
	"math/big"
	"sync"
)

// MemoryStore is an in-process journal, used when no DSN is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	hashes  map[string]struct{}
	limit   int // 0 keeps everything
	next    int64
}

func NewMemoryStore() *MemoryStore {
	return NewBoundedMemoryStore(0)
}

// NewBoundedMemoryStore keeps only the latest limit entries. Duplicate hashes are
// detected within that window.
func NewBoundedMemoryStore(limit int) *MemoryStore {
	if limit < 0 {
		limit = 0
	}
	return &MemoryStore{hashes: make(map[string]struct{}), limit: limit}
}

var _ Store = (*MemoryStore)(nil)

// Append records e and sets e.ID.
func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.TxHash != "" {
		if _, dup := s.hashes[e.TxHash]; dup {
			return ErrDuplicateKey
		}
		s.hashes[e.TxHash] = struct{}{}
	}
	s.next++
	e.ID = s.next
	cp := *e
	cp.Amount = copyBig(e.Amount)
	cp.FeePaid = copyBig(e.FeePaid)
	s.entries = append(s.entries, cp)
	if s.limit > 0 && len(s.entries) > s.limit {
		drop := s.entries[0]
		if drop.TxHash != "" {
			delete(s.hashes, drop.TxHash)
		}
		s.entries = append(s.entries[:0:0], s.entries[1:]...)
	}
	return nil
}

// List returns entries in append order.
func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if opts.Wallet != "" && e.Wallet != opts.Wallet {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() {}

func copyBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
