package scheduler

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/swap-runner/internal/chaintest"
	"github.com/ligun0805/swap-runner/internal/config"
	"github.com/ligun0805/swap-runner/internal/journal"
	"github.com/ligun0805/swap-runner/internal/planner"
	"github.com/ligun0805/swap-runner/internal/registry"
	"github.com/ligun0805/swap-runner/internal/swapcore"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

var (
	ether = big.NewInt(1_000_000_000_000_000_000)
	gwei  = big.NewInt(1_000_000_000)

	usdc = registry.Token{Symbol: "USDC", Address: common.HexToAddress("0xf817257fed379853cDe0fa4F97AB987181B1E5Ea"), Decimals: 6}
	chog = registry.Token{Symbol: "CHOG", Address: common.HexToAddress("0xE0590015A873bF326bd645c3E1266d4db41C4E6B"), Decimals: 18}
	wmon = registry.Token{Symbol: "WMON", Address: common.HexToAddress("0x760AfE86e5de5fa0Ee542fc7B7B713e1c5425701"), Decimals: 18}

	testDelays = Delays{
		Swap:   config.Range{Min: 7 * time.Second, Max: 7 * time.Second},
		Wallet: config.Range{Min: 10 * time.Second, Max: 10 * time.Second},
		Cycle:  config.Range{Min: 30 * time.Second, Max: 30 * time.Second},
		Skip:   config.Range{Min: time.Second, Max: time.Second},
	}
)

// fixedRand draws 7% out of a 5-10% band, keeps order and picks minimum delays.
type fixedRand struct{}

func (fixedRand) IntN(n int) int {
	if n > 20 {
		return 20
	}
	return 0
}
func (fixedRand) Shuffle(int, func(i, j int)) {}
func (fixedRand) Int64N(int64) int64          { return 0 }

type recordingSleeper struct {
	mu     sync.Mutex
	slept  []time.Duration
	onCall func()
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	r.mu.Unlock()
	if r.onCall != nil {
		r.onCall()
	}
	return ctx.Err()
}

func mustWallet(t *testing.T, hex string) *wallet.Wallet {
	t.Helper()
	w, err := wallet.FromHex("test", hex)
	require.NoError(t, err)
	return w
}

type harness struct {
	chain   *chaintest.Chain
	exec    *swapcore.Executor
	journal *journal.MemoryStore
	sleeper *recordingSleeper
	states  []State
	opts    Options
}

func newHarness(t *testing.T, wallets []*wallet.Wallet, allow [][2]string) *harness {
	t.Helper()
	reg, err := registry.New([]registry.Token{usdc, chog, wmon})
	require.NoError(t, err)
	pairs, err := reg.Pairs(allow)
	require.NoError(t, err)

	h := &harness{chain: chaintest.New(), journal: journal.NewMemoryStore(), sleeper: &recordingSleeper{}}
	venue := swapcore.Venue{
		Name:             "ambient",
		Kind:             swapcore.KindAmbient,
		Router:           common.HexToAddress("0x88B96aF200c8a9c35442C8AC6cd3D22695AaE4F0"),
		PoolIndex:        big.NewInt(36000),
		SwapGasLimit:     300_000,
		ApproveGasLimit:  200_000,
		GasMultiplierPct: 200,
		Reserve:          new(big.Int).Div(ether, big.NewInt(100)),
		Explorer:         "https://testnet.monadexplorer.com/tx/",
	}
	h.exec, err = swapcore.NewExecutor(h.chain, big.NewInt(10143), venue, zerolog.Nop())
	require.NoError(t, err)

	pl, err := planner.New(planner.Options{
		Registry:  reg,
		AllowList: pairs,
		Policy:    planner.Shuffled,
		Band:      planner.Band{Min: 50, Max: 100},
		Rand:      fixedRand{},
		Balances:  h.exec,
		Now:       func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	require.NoError(t, err)

	h.opts = Options{
		Wallets:   wallets,
		Swapper:   h.exec,
		Planner:   pl,
		Registry:  reg,
		Journal:   h.journal,
		Delays:    testDelays,
		MaxCycles: 1,
		Rand:      fixedRand{},
		Sleeper:   h.sleeper,
		Observer:  func(tr Transition) { h.states = append(h.states, tr.To) },
		Log:       zerolog.Nop(),
		Now:       func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
	return h
}

func (h *harness) run(t *testing.T, ctx context.Context) *Scheduler {
	t.Helper()
	s, err := New(h.opts)
	require.NoError(t, err)
	require.NoError(t, s.Run(ctx))
	return s
}

func (h *harness) entries(t *testing.T) []journal.Entry {
	t.Helper()
	es, err := h.journal.List(context.Background(), journal.ListOptions{})
	require.NoError(t, err)
	return es
}

const (
	key0 = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	key1 = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

func TestRevertDoesNotEndLoop(t *testing.T) {
	w := mustWallet(t, key0)
	h := newHarness(t, []*wallet.Wallet{w}, [][2]string{{"USDC", "CHOG"}, {"USDC", "WMON"}})
	h.chain.SetNative(w.Address, ether)
	h.chain.SetToken(usdc.Address, w.Address, big.NewInt(1000_000_000))
	swaps := 0
	h.chain.Revert = func(*types.Transaction) bool { swaps++; return swaps == 1 }

	s := h.run(t, context.Background())

	es := h.entries(t)
	require.Len(t, es, 2)
	assert.Equal(t, "reverted", es[0].Outcome)
	assert.NotEmpty(t, es[0].TxHash)
	assert.Equal(t, "70.000000", swapcore.FormatUnits(es[0].Amount, 6))
	assert.Equal(t, int64(70), es[0].PerMille)
	assert.Equal(t, "ok", es[1].Outcome)
	assert.Equal(t, "WMON", es[1].TokenOut)

	// next pair only after the swap delay
	assert.Equal(t, []time.Duration{7 * time.Second}, h.sleeper.slept)

	// approve + second swap paid fees, the reverted swap did not touch the balance
	fee := new(big.Int).Mul(new(big.Int).Mul(big.NewInt(52), gwei), big.NewInt(150_000))
	want := new(big.Int).Sub(ether, new(big.Int).Mul(fee, big.NewInt(2)))
	assert.Equal(t, 0, want.Cmp(h.chain.Native(w.Address)))

	st := s.Stats()
	assert.Equal(t, 1, st.Cycles)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 1, st.Succeeded)
	assert.Equal(t, Stopped, s.State())

	assert.Subset(t, h.states, []State{SelectingPair, Approving, Submitting, Confirming, Delaying, Stopped})
	assert.Equal(t, Stopped, h.states[len(h.states)-1])
}

func TestNetworkErrorDoesNotEndLoop(t *testing.T) {
	w := mustWallet(t, key0)
	h := newHarness(t, []*wallet.Wallet{w}, [][2]string{{"USDC", "CHOG"}, {"USDC", "WMON"}})
	h.chain.SetNative(w.Address, ether)
	h.chain.SetToken(usdc.Address, w.Address, big.NewInt(1000_000_000))
	h.chain.SendErr = errors.New("connection reset by peer")

	s := h.run(t, context.Background())

	es := h.entries(t)
	require.Len(t, es, 2)
	for _, e := range es {
		assert.Equal(t, "network", e.Outcome)
		assert.Empty(t, e.TxHash)
	}
	assert.Equal(t, "WMON", es[1].TokenOut)
	assert.Equal(t, []time.Duration{7 * time.Second}, h.sleeper.slept)

	// only the USDC approval made it out
	assert.Equal(t, 1, h.chain.SentCount())

	st := s.Stats()
	assert.Equal(t, 1, st.Cycles)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, 2, st.Failed)
	assert.Zero(t, st.Aborted)
	assert.Equal(t, Stopped, s.State())
}

func TestApprovalFailureDoesNotEndLoop(t *testing.T) {
	w := mustWallet(t, key0)
	h := newHarness(t, []*wallet.Wallet{w}, [][2]string{{"USDC", "CHOG"}, {"USDC", "WMON"}})
	h.chain.SetNative(w.Address, ether)
	h.chain.SetToken(usdc.Address, w.Address, big.NewInt(1000_000_000))
	h.chain.RevertApprove = true

	s := h.run(t, context.Background())

	es := h.entries(t)
	require.Len(t, es, 2)
	for _, e := range es {
		assert.Equal(t, "approval_failure", e.Outcome)
		assert.Contains(t, e.Reason, "approve receipt status 0")
	}
	assert.Equal(t, []time.Duration{7 * time.Second}, h.sleeper.slept)

	// each pair retried the approval, no swap was sent
	assert.Equal(t, 2, h.chain.SentCount())
	assert.Zero(t, h.chain.Allowance(usdc.Address, w.Address, h.exec.Venue().Router).Sign())

	st := s.Stats()
	assert.Equal(t, 1, st.Cycles)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, 2, st.Failed)
	assert.Equal(t, Stopped, s.State())
}

func TestReserveAbortsWalletAndMovesOn(t *testing.T) {
	poor, rich := mustWallet(t, key0), mustWallet(t, key1)
	h := newHarness(t, []*wallet.Wallet{poor, rich}, [][2]string{{"USDC", "CHOG"}})
	h.chain.SetNative(poor.Address, new(big.Int).Div(ether, big.NewInt(1000)))
	h.chain.SetNative(rich.Address, ether)
	h.chain.SetToken(usdc.Address, poor.Address, big.NewInt(1000_000_000))
	h.chain.SetToken(usdc.Address, rich.Address, big.NewInt(1000_000_000))

	s := h.run(t, context.Background())

	require.Equal(t, 2, h.chain.SentCount())
	for _, tx := range h.chain.Sent {
		from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
		require.NoError(t, err)
		assert.Equal(t, rich.Address, from)
	}
	es := h.entries(t)
	require.Len(t, es, 1)
	assert.Equal(t, rich.Address.Hex(), es[0].Wallet)
	assert.Equal(t, 1, s.Stats().Aborted)
	assert.Equal(t, []time.Duration{10 * time.Second}, h.sleeper.slept)
	assert.Contains(t, h.states, NextWallet)
}

func TestSkipDelayAndCycles(t *testing.T) {
	w := mustWallet(t, key0)
	h := newHarness(t, []*wallet.Wallet{w}, [][2]string{{"CHOG", "USDC"}, {"USDC", "CHOG"}})
	h.opts.MaxCycles = 2
	h.chain.SetNative(w.Address, ether)
	h.chain.SetToken(usdc.Address, w.Address, big.NewInt(1000_000_000))

	s := h.run(t, context.Background())

	assert.Equal(t, []time.Duration{time.Second, 30 * time.Second, time.Second}, h.sleeper.slept)
	assert.Equal(t, 2, s.Stats().Cycles)
	assert.Equal(t, 2, s.Stats().Skipped)
	// approval only in the first cycle
	assert.Equal(t, 3, h.chain.SentCount())
	assert.Contains(t, h.states, NextCycle)
}

func TestWalletWithoutTokensIsSkipped(t *testing.T) {
	w := mustWallet(t, key0)
	h := newHarness(t, []*wallet.Wallet{w}, [][2]string{{"USDC", "CHOG"}})
	h.chain.SetNative(w.Address, ether)

	s := h.run(t, context.Background())

	assert.Zero(t, h.chain.SentCount())
	assert.Zero(t, s.Stats().Attempts)
	assert.Empty(t, h.entries(t))
}

func TestCancelStopsDuringDelay(t *testing.T) {
	w := mustWallet(t, key0)
	h := newHarness(t, []*wallet.Wallet{w}, [][2]string{{"USDC", "CHOG"}, {"USDC", "WMON"}})
	h.opts.MaxCycles = 0
	h.chain.SetNative(w.Address, ether)
	h.chain.SetToken(usdc.Address, w.Address, big.NewInt(1000_000_000))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.sleeper.onCall = cancel

	s := h.run(t, ctx)

	assert.Equal(t, 1, s.Stats().Attempts)
	assert.Zero(t, s.Stats().Cycles)
	assert.Len(t, h.sleeper.slept, 1)
	assert.Equal(t, Stopped, s.State())
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, wallet.ErrNoWallets)

	_, err = New(Options{Wallets: []*wallet.Wallet{mustWallet(t, key0)}})
	assert.ErrorIs(t, err, swapcore.ErrConfiguration)
}

func TestTimerSleeperHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := TimerSleeper{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, TimerSleeper{}.Sleep(context.Background(), time.Millisecond))
}

func TestPickDelay(t *testing.T) {
	r := config.Range{Min: time.Second, Max: 3 * time.Second}
	assert.Equal(t, time.Second, pickDelay(fixedRand{}, r))
	assert.Equal(t, 2*time.Second, pickDelay(fixedRand{}, config.Range{Min: 2 * time.Second, Max: time.Second}))
	assert.Equal(t, "Confirming", Confirming.String())
	assert.Equal(t, "7.5%", fmtShare(75))
}
