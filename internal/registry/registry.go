// Package registry holds the immutable token table and the swap pairs drawn from it.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownToken is returned when a pair or hop names a symbol missing from the registry.
var ErrUnknownToken = errors.New("unknown token")

// Token is one ERC-20 entry keyed by symbol.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int
}

// Pair is an ordered swap direction. Hop, when set, routes In -> Hop -> Out.
type Pair struct {
	In  Token
	Out Token
	Hop *Token
}

func (p Pair) String() string {
	if p.Hop != nil {
		return p.In.Symbol + " -> " + p.Hop.Symbol + " -> " + p.Out.Symbol
	}
	return p.In.Symbol + " -> " + p.Out.Symbol
}

// Path lists token addresses in routing order.
func (p Pair) Path() []common.Address {
	if p.Hop != nil {
		return []common.Address{p.In.Address, p.Hop.Address, p.Out.Address}
	}
	return []common.Address{p.In.Address, p.Out.Address}
}

// WithHop returns a copy routed through hop. A hop equal to either end is ignored.
func (p Pair) WithHop(hop Token) Pair {
	if hop.Address == p.In.Address || hop.Address == p.Out.Address {
		return p
	}
	h := hop
	p.Hop = &h
	return p
}

// Registry is built once at startup and never mutated afterwards.
type Registry struct {
	tokens  map[string]Token
	symbols []string
}

// New validates tokens and builds a registry. Symbols must be unique and decimals in 0..77.
func New(tokens []Token) (*Registry, error) {
	if len(tokens) == 0 {
		return nil, errors.New("registry: no tokens configured")
	}
	r := &Registry{tokens: make(map[string]Token, len(tokens))}
	seen := make(map[common.Address]string, len(tokens))
	for _, t := range tokens {
		t.Symbol = strings.TrimSpace(t.Symbol)
		if t.Symbol == "" {
			return nil, errors.New("registry: empty token symbol")
		}
		if _, dup := r.tokens[t.Symbol]; dup {
			return nil, fmt.Errorf("registry: duplicate symbol %q", t.Symbol)
		}
		if t.Address == (common.Address{}) {
			return nil, fmt.Errorf("registry: %s has zero address", t.Symbol)
		}
		if other, dup := seen[t.Address]; dup {
			return nil, fmt.Errorf("registry: %s and %s share address %s", other, t.Symbol, t.Address.Hex())
		}
		if t.Decimals < 0 || t.Decimals > 77 {
			return nil, fmt.Errorf("registry: %s has invalid decimals %d", t.Symbol, t.Decimals)
		}
		seen[t.Address] = t.Symbol
		r.tokens[t.Symbol] = t
		r.symbols = append(r.symbols, t.Symbol)
	}
	sort.Strings(r.symbols)
	return r, nil
}

// Lookup returns the token for symbol.
func (r *Registry) Lookup(symbol string) (Token, bool) {
	t, ok := r.tokens[symbol]
	return t, ok
}

// MustLookup is Lookup returning ErrUnknownToken on a miss.
func (r *Registry) MustLookup(symbol string) (Token, error) {
	t, ok := r.tokens[symbol]
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
	}
	return t, nil
}

// ByAddress finds a token by contract address.
func (r *Registry) ByAddress(addr common.Address) (Token, bool) {
	for _, t := range r.tokens {
		if t.Address == addr {
			return t, true
		}
	}
	return Token{}, false
}

// Symbols returns all symbols in sorted order.
func (r *Registry) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

// Tokens returns all tokens sorted by symbol.
func (r *Registry) Tokens() []Token {
	out := make([]Token, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, r.tokens[s])
	}
	return out
}

func (r *Registry) Len() int { return len(r.symbols) }

// Pairs resolves an allow-list of [in, out] symbol pairs.
func (r *Registry) Pairs(list [][2]string) ([]Pair, error) {
	out := make([]Pair, 0, len(list))
	for _, sp := range list {
		if sp[0] == sp[1] {
			return nil, fmt.Errorf("registry: pair %s -> %s swaps a token with itself", sp[0], sp[1])
		}
		in, err := r.MustLookup(sp[0])
		if err != nil {
			return nil, err
		}
		outTok, err := r.MustLookup(sp[1])
		if err != nil {
			return nil, err
		}
		out = append(out, Pair{In: in, Out: outTok})
	}
	return out, nil
}

// Permutations generates every ordered pair of distinct tokens.
func (r *Registry) Permutations() []Pair {
	toks := r.Tokens()
	out := make([]Pair, 0, len(toks)*(len(toks)-1))
	for i := range toks {
		for j := range toks {
			if i != j {
				out = append(out, Pair{In: toks[i], Out: toks[j]})
			}
		}
	}
	return out
}
