// Package planner decides which pair each wallet swaps next and how much of its balance to use.
package planner

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/swap-runner/internal/registry"
	"github.com/ligun0805/swap-runner/internal/swapcore"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

// Rand is the randomness source. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// BalanceReader reads ERC-20 balances. *swapcore.Executor satisfies it.
type BalanceReader interface {
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

type Policy string

const (
	// Shuffled walks a fixed allow-list in a fresh random order each cycle.
	Shuffled Policy = "shuffled"
	// Random draws uniformly from every ordered pair of distinct tokens.
	Random Policy = "random"
	// RandomHop is Random with a coin flip for routing through the hop token.
	RandomHop Policy = "random-hop"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case Shuffled, Random, RandomHop:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown pair policy %q", swapcore.ErrConfiguration, s)
}

// Band is an inclusive percentage window in tenths of a percent.
type Band struct {
	Min int64
	Max int64
}

func NewBand(minPerMille, maxPerMille int64) (Band, error) {
	if minPerMille <= 0 || minPerMille > maxPerMille || maxPerMille > 1000 {
		return Band{}, fmt.Errorf("%w: percentage band %s-%s must satisfy 0 < min <= max <= 100",
			swapcore.ErrConfiguration, fmtPerMille(minPerMille), fmtPerMille(maxPerMille))
	}
	return Band{Min: minPerMille, Max: maxPerMille}, nil
}

func (b Band) String() string { return fmtPerMille(b.Min) + "-" + fmtPerMille(b.Max) + "%" }

func fmtPerMille(v int64) string {
	if v%10 == 0 {
		return fmt.Sprintf("%d", v/10)
	}
	return fmt.Sprintf("%d.%d", v/10, abs(v%10))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Amount is balance * perMille / 1000, truncated.
func Amount(balance *big.Int, perMille int64) *big.Int {
	if balance == nil || balance.Sign() <= 0 || perMille <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(balance, big.NewInt(perMille))
	return out.Quo(out, big.NewInt(1000))
}

type Options struct {
	Registry       *registry.Registry
	AllowList      []registry.Pair // Shuffled only
	Hop            *registry.Token // RandomHop only
	Policy         Policy
	Band           Band
	SwapsPerWallet int // Random / RandomHop
	Deadline       time.Duration
	Rand           Rand
	Balances       BalanceReader
	Now            func() time.Time
}

type Planner struct {
	opts  Options
	perms []registry.Pair
}

func New(o Options) (*Planner, error) {
	if o.Registry == nil || o.Rand == nil || o.Balances == nil {
		return nil, fmt.Errorf("%w: planner needs a registry, a rand source and a balance reader", swapcore.ErrConfiguration)
	}
	if _, err := NewBand(o.Band.Min, o.Band.Max); err != nil {
		return nil, err
	}
	if _, err := ParsePolicy(string(o.Policy)); err != nil {
		return nil, err
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Deadline <= 0 {
		o.Deadline = 20 * time.Minute
	}
	p := &Planner{opts: o}
	switch o.Policy {
	case Shuffled:
		if len(o.AllowList) == 0 {
			return nil, fmt.Errorf("%w: shuffled policy needs a pair allow-list", swapcore.ErrConfiguration)
		}
	case RandomHop:
		if o.Hop == nil {
			return nil, fmt.Errorf("%w: random-hop policy needs a hop token", swapcore.ErrConfiguration)
		}
		fallthrough
	case Random:
		p.perms = o.Registry.Permutations()
		if len(p.perms) == 0 {
			return nil, fmt.Errorf("%w: random policy needs at least two tokens", swapcore.ErrConfiguration)
		}
		if p.opts.SwapsPerWallet <= 0 {
			p.opts.SwapsPerWallet = 10
		}
	}
	return p, nil
}

func (p *Planner) Policy() Policy { return p.opts.Policy }
func (p *Planner) Band() Band     { return p.opts.Band }

// Pairs returns the pair sequence for one wallet in one cycle.
func (p *Planner) Pairs() []registry.Pair {
	switch p.opts.Policy {
	case Shuffled:
		out := append([]registry.Pair(nil), p.opts.AllowList...)
		p.opts.Rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	default:
		out := make([]registry.Pair, 0, p.opts.SwapsPerWallet)
		for range p.opts.SwapsPerWallet {
			pair := p.perms[p.opts.Rand.IntN(len(p.perms))]
			if p.opts.Policy == RandomHop && p.opts.Rand.IntN(2) == 0 {
				pair = pair.WithHop(*p.opts.Hop)
			}
			out = append(out, pair)
		}
		return out
	}
}

// Draw picks a share of the balance, uniform over the band.
func (p *Planner) Draw() int64 {
	b := p.opts.Band
	return b.Min + int64(p.opts.Rand.IntN(int(b.Max-b.Min+1)))
}

// Plan reads w's In balance and sizes a swap. ok is false when there is nothing to swap.
func (p *Planner) Plan(ctx context.Context, w *wallet.Wallet, pair registry.Pair) (swapcore.SwapIntent, bool, error) {
	bal, err := p.opts.Balances.TokenBalance(ctx, pair.In.Address, w.Address)
	if err != nil {
		return swapcore.SwapIntent{}, false, err
	}
	in := swapcore.SwapIntent{Wallet: w, Pair: pair, Balance: bal, MinOut: new(big.Int)}
	if bal.Sign() == 0 {
		return in, false, nil
	}
	in.PerMille = p.Draw()
	in.Amount = Amount(bal, in.PerMille)
	if in.Amount.Sign() == 0 {
		return in, false, nil
	}
	in.Deadline = p.opts.Now().Add(p.opts.Deadline)
	return in, true, nil
}
