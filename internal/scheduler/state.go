package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ligun0805/swap-runner/internal/config"
	"github.com/ligun0805/swap-runner/internal/swapcore"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

type State int

const (
	Idle State = iota
	SelectingPair
	Approving
	Submitting
	Confirming
	Delaying
	NextWallet
	NextCycle
	Stopped
)

var stateNames = [...]string{"Idle", "SelectingPair", "Approving", "Submitting", "Confirming", "Delaying", "NextWallet", "NextCycle", "Stopped"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func fromStage(st swapcore.Stage) State {
	switch st {
	case swapcore.StageApproving:
		return Approving
	case swapcore.StageSubmitting:
		return Submitting
	}
	return Confirming
}

// Transition is handed to the observer on every state change.
type Transition struct {
	Cycle  int
	Wallet *wallet.Wallet // nil between wallets
	From   State
	To     State
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Delays are the four cadences of the loop.
type Delays struct {
	Swap   config.Range
	Wallet config.Range
	Cycle  config.Range
	Skip   config.Range
}

// Rand draws delays. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Int64N(n int64) int64
}

func pickDelay(r Rand, rg config.Range) time.Duration {
	if rg.Max <= rg.Min {
		return rg.Min
	}
	return rg.Min + time.Duration(r.Int64N(int64(rg.Max-rg.Min)+1))
}
