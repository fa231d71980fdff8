// Command swapbot cycles a set of wallets through randomized token swaps on one DEX venue.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/swap-runner/internal/config"
	"github.com/ligun0805/swap-runner/internal/journal"
	"github.com/ligun0805/swap-runner/internal/logging"
	"github.com/ligun0805/swap-runner/internal/metrics"
	"github.com/ligun0805/swap-runner/internal/planner"
	"github.com/ligun0805/swap-runner/internal/scheduler"
	"github.com/ligun0805/swap-runner/internal/swapcore"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	st := config.Load()
	cf := bindFlags(flag.CommandLine, &st)
	flag.Parse()

	if cf.listVenues {
		for _, v := range config.BuiltinVenues() {
			fmt.Println(v)
		}
		return
	}

	log := logging.New(st.LogLevel, st.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, st, log)
	code := exitCode(ctx, err)
	stop()
	switch {
	case code != 0:
		log.Error().Err(err).Msg("swapbot stopped")
		os.Exit(code)
	case err != nil:
		log.Info().Msg("interrupted during startup")
	}
}

// exitCode is 0 for a clean run and for any interrupt, even one that broke startup.
// Check it before the signal context is released.
func exitCode(ctx context.Context, err error) int {
	if err == nil || ctx.Err() != nil {
		return 0
	}
	return 1
}

func run(ctx context.Context, st config.Settings, log zerolog.Logger) error {
	vf, err := config.LoadVenue(st.Venue, st.VenueFile)
	if err != nil {
		return err
	}
	prof, err := config.Resolve(st, vf)
	if err != nil {
		return err
	}
	policy, err := planner.ParsePolicy(prof.PairPolicy)
	if err != nil {
		return err
	}
	band, err := planner.NewBand(prof.PercentMin, prof.PercentMax)
	if err != nil {
		return err
	}

	now := uint64(time.Now().UnixNano())
	rng := rand.New(rand.NewPCG(now, now>>7|1))

	wallets, err := loadWallets(st)
	if err != nil {
		return err
	}
	if st.WalletIndex > 0 {
		if wallets, err = wallet.Select(wallets, st.WalletIndex); err != nil {
			return fmt.Errorf("%w: %v", swapcore.ErrConfiguration, err)
		}
	} else if st.ShuffleWallets {
		wallet.Shuffle(wallets, rng.Shuffle)
	}

	client, err := swapcore.Dial(ctx, st.RPCURL, st.RPCProxy)
	if err != nil {
		return fmt.Errorf("%w: dial rpc: %v", swapcore.ErrNetwork, err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("%w: cannot reach rpc: %s", swapcore.ErrNetwork, swapcore.Classify(err))
	}
	if st.ChainID != 0 && chainID.Cmp(big.NewInt(st.ChainID)) != 0 {
		return fmt.Errorf("%w: node reports chain %s, expected %d", swapcore.ErrConfiguration, chainID, st.ChainID)
	}

	exec, err := swapcore.NewExecutor(client, chainID, prof.Venue, log)
	if err != nil {
		return err
	}
	pl, err := planner.New(planner.Options{
		Registry:       prof.Registry,
		AllowList:      prof.Pairs,
		Hop:            prof.Hop,
		Policy:         policy,
		Band:           band,
		SwapsPerWallet: prof.SwapsPerWallet,
		Deadline:       time.Duration(prof.DeadlineSecs) * time.Second,
		Rand:           rng,
		Balances:       exec,
	})
	if err != nil {
		return err
	}

	store, err := openJournal(ctx, st.JournalDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	printConfig(st, prof, chainID, wallets)
	printNetworkState(ctx, client, prof.Venue)

	if prof.ApproveAll {
		if err := approveWallets(ctx, exec, wallets, prof.Registry.Tokens(), log); err != nil {
			return nil
		}
	}

	sched, err := scheduler.New(scheduler.Options{
		Wallets:  wallets,
		Swapper:  exec,
		Planner:  pl,
		Registry: prof.Registry,
		Journal:  store,
		Delays: scheduler.Delays{
			Swap:   prof.SwapDelay,
			Wallet: prof.WalletDelay,
			Cycle:  prof.CycleDelay,
			Skip:   prof.SkipDelay,
		},
		MaxCycles: st.MaxCycles,
		Rand:      rng,
		Log:       log,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	if st.MetricsAddr != "" {
		srv := metrics.NewServer(st.MetricsAddr)
		g.Go(func() error {
			log.Info().Str("addr", st.MetricsAddr).Msg("metrics listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutCtx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return sched.Run(gctx)
	})
	return g.Wait()
}

// loadWallets merges env keys with the keystore, env first.
func loadWallets(st config.Settings) ([]*wallet.Wallet, error) {
	ws, err := wallet.LoadEnv(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", swapcore.ErrConfiguration, err)
	}
	if st.KeystoreDir != "" {
		pass := st.KeystorePassphrase
		if pass == "" {
			if !isTerminal() {
				return nil, fmt.Errorf("%w: KEYSTORE_PASSPHRASE is required without a terminal", swapcore.ErrConfiguration)
			}
			if pass, err = readPassword("Keystore passphrase: "); err != nil {
				return nil, err
			}
		}
		ks, err := wallet.LoadKeystore(st.KeystoreDir, pass)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", swapcore.ErrConfiguration, err)
		}
		ws = wallet.Dedup(append(ws, ks...))
	}
	if len(ws) == 0 {
		return nil, fmt.Errorf("%w: %w (set WALLET_*, PRIVATE_KEYS, PRIVATE_KEY or KEYSTORE_DIR)", swapcore.ErrConfiguration, wallet.ErrNoWallets)
	}
	return ws, nil
}

// memoryJournalLimit bounds the in-process journal of a run with no DSN.
const memoryJournalLimit = 1000

func openJournal(ctx context.Context, dsn string) (journal.Store, error) {
	if dsn == "" {
		return journal.NewBoundedMemoryStore(memoryJournalLimit), nil
	}
	pg, err := journal.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open journal: %v", swapcore.ErrConfiguration, err)
	}
	return pg, nil
}
