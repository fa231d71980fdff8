// Package scheduler runs the wallet/pair loop as an explicit state machine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ligun0805/swap-runner/internal/journal"
	"github.com/ligun0805/swap-runner/internal/metrics"
	"github.com/ligun0805/swap-runner/internal/planner"
	"github.com/ligun0805/swap-runner/internal/registry"
	"github.com/ligun0805/swap-runner/internal/swapcore"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

// Swapper is the executor surface the loop needs. *swapcore.Executor satisfies it.
type Swapper interface {
	planner.BalanceReader
	CheckReserve(ctx context.Context, owner common.Address) (*big.Int, error)
	Execute(ctx context.Context, in swapcore.SwapIntent, onStage func(swapcore.Stage)) (swapcore.SwapResult, error)
	Venue() swapcore.Venue
}

// PairPlanner is satisfied by *planner.Planner.
type PairPlanner interface {
	Pairs() []registry.Pair
	Plan(ctx context.Context, w *wallet.Wallet, pair registry.Pair) (swapcore.SwapIntent, bool, error)
}

type Options struct {
	Wallets   []*wallet.Wallet
	Swapper   Swapper
	Planner   PairPlanner
	Registry  *registry.Registry
	Journal   journal.Store // optional
	Delays    Delays
	MaxCycles int // 0 runs until ctx is done
	Rand      Rand
	Sleeper   Sleeper            // defaults to TimerSleeper
	Observer  func(t Transition) // optional
	Log       zerolog.Logger
	Now       func() time.Time
}

// Stats counts what a run did.
type Stats struct {
	Cycles    int
	Attempts  int
	Succeeded int
	Failed    int
	Skipped   int
	Aborted   int // wallets cut short by the reserve check
}

type Scheduler struct {
	opts  Options
	state State
	cycle int
	cur   *wallet.Wallet
	stats Stats
}

func New(o Options) (*Scheduler, error) {
	if len(o.Wallets) == 0 {
		return nil, wallet.ErrNoWallets
	}
	if o.Swapper == nil || o.Planner == nil || o.Registry == nil || o.Rand == nil {
		return nil, fmt.Errorf("%w: scheduler needs a swapper, a planner, a registry and a rand source", swapcore.ErrConfiguration)
	}
	if o.MaxCycles < 0 {
		return nil, fmt.Errorf("%w: max cycles must be >= 0", swapcore.ErrConfiguration)
	}
	if o.Sleeper == nil {
		o.Sleeper = TimerSleeper{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Scheduler{opts: o, state: Idle}, nil
}

func (s *Scheduler) State() State { return s.state }
func (s *Scheduler) Stats() Stats { return s.stats }

func (s *Scheduler) set(to State) {
	if to == s.state {
		return
	}
	t := Transition{Cycle: s.cycle, Wallet: s.cur, From: s.state, To: to}
	s.state = to
	ev := s.opts.Log.Debug().Int("cycle", t.Cycle).Stringer("from", t.From).Stringer("to", t.To)
	if t.Wallet != nil {
		ev = ev.Str("wallet", t.Wallet.Short())
	}
	ev.Msg("state")
	if s.opts.Observer != nil {
		s.opts.Observer(t)
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	return s.opts.Sleeper.Sleep(ctx, d)
}

// Run loops until MaxCycles complete or ctx is done. Cancellation is a clean stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.set(Stopped)
	for s.cycle = 1; s.opts.MaxCycles == 0 || s.cycle <= s.opts.MaxCycles; s.cycle++ {
		s.opts.Log.Info().Int("cycle", s.cycle).Int("wallets", len(s.opts.Wallets)).Msg("cycle start")
		for i, w := range s.opts.Wallets {
			s.cur = w
			err := s.runWallet(ctx, w)
			s.cur = nil
			if err != nil {
				return s.stop(err)
			}
			if i < len(s.opts.Wallets)-1 {
				s.set(NextWallet)
				if err := s.sleep(ctx, pickDelay(s.opts.Rand, s.opts.Delays.Wallet)); err != nil {
					return s.stop(err)
				}
			}
		}
		s.stats.Cycles++
		metrics.CyclesTotal.Inc()
		if s.opts.MaxCycles != 0 && s.cycle == s.opts.MaxCycles {
			break
		}
		s.set(NextCycle)
		d := pickDelay(s.opts.Rand, s.opts.Delays.Cycle)
		s.opts.Log.Info().Int("cycle", s.cycle).Dur("next_in", d).Msg("cycle done")
		if err := s.sleep(ctx, d); err != nil {
			return s.stop(err)
		}
	}
	s.opts.Log.Info().Int("cycles", s.stats.Cycles).Int("ok", s.stats.Succeeded).Int("failed", s.stats.Failed).Msg("run complete")
	return nil
}

func (s *Scheduler) stop(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.opts.Log.Info().Int("cycle", s.cycle).Msg("stopping")
		return nil
	}
	return err
}

// runWallet returns an error only when ctx is done.
func (s *Scheduler) runWallet(ctx context.Context, w *wallet.Wallet) error {
	s.set(Idle)
	log := s.opts.Log.With().Str("wallet", w.Short()).Logger()

	native, err := s.opts.Swapper.CheckReserve(ctx, w.Address)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	metrics.ObserveBalance(w.Short(), native)
	if err != nil {
		if errors.Is(err, swapcore.ErrInsufficientGas) {
			s.stats.Aborted++
		}
		log.Warn().Str("kind", swapcore.KindLabel(err)).Msg("wallet skipped: " + reasonOf(err))
		return nil
	}
	held, err := s.holdsAny(ctx, w)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		log.Warn().Str("kind", swapcore.KindLabel(err)).Msg("wallet skipped: " + reasonOf(err))
		return nil
	}
	if !held {
		log.Info().Msg("wallet skipped: holds no registry token")
		return nil
	}
	log.Info().Str("native", swapcore.FormatEther(native)).Msg("wallet start")

	pairs := s.opts.Planner.Pairs()
	for i, pair := range pairs {
		s.set(SelectingPair)
		out, err := s.attempt(ctx, log, w, pair)
		if err != nil {
			return err
		}
		if out == abortWallet {
			s.stats.Aborted++
			return nil
		}
		if i == len(pairs)-1 {
			break
		}
		delay := s.opts.Delays.Swap
		if out == skipped {
			delay = s.opts.Delays.Skip
		}
		s.set(Delaying)
		if err := s.sleep(ctx, pickDelay(s.opts.Rand, delay)); err != nil {
			return err
		}
	}
	return nil
}

// holdsAny reports whether w has a non-zero balance of some registry token.
// A read error only surfaces when no token could be confirmed.
func (s *Scheduler) holdsAny(ctx context.Context, w *wallet.Wallet) (bool, error) {
	var first error
	for _, t := range s.opts.Registry.Tokens() {
		bal, err := s.opts.Swapper.TokenBalance(ctx, t.Address, w.Address)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			if first == nil {
				first = err
			}
			continue
		}
		if bal.Sign() > 0 {
			return true, nil
		}
	}
	return false, first
}

func reasonOf(err error) string {
	var se *swapcore.SwapError
	if errors.As(err, &se) {
		return se.Reason
	}
	return swapcore.Classify(err)
}
