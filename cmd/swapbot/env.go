package main

import (
	"flag"
	"fmt"
	"math/big"
	"strings"

	"github.com/ligun0805/swap-runner/internal/config"
	"github.com/ligun0805/swap-runner/internal/swapcore"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

type cliFlags struct {
	listVenues bool
}

// bindFlags lets command-line flags override the environment. Call before flag.Parse.
func bindFlags(fs *flag.FlagSet, st *config.Settings) *cliFlags {
	var cf cliFlags
	fs.StringVar(&st.RPCURL, "rpc", st.RPCURL, "RPC endpoint URL (RPC_URL)")
	fs.StringVar(&st.RPCProxy, "proxy", st.RPCProxy, "socks5:// or http:// proxy for RPC traffic (RPC_PROXY)")
	fs.Int64Var(&st.ChainID, "chain-id", st.ChainID, "expected chain id, 0 accepts what the node reports (CHAIN_ID)")
	fs.StringVar(&st.Venue, "venue", st.Venue, "builtin venue: "+strings.Join(config.BuiltinVenues(), ", ")+" (VENUE)")
	fs.StringVar(&st.VenueFile, "venue-file", st.VenueFile, "venue YAML path, overrides -venue (VENUE_FILE)")
	fs.StringVar(&st.PairPolicy, "policy", st.PairPolicy, "shuffled, random or random-hop (PAIR_POLICY)")
	fs.IntVar(&st.WalletIndex, "pick", st.WalletIndex, "run only the Nth wallet, 1-based (WALLET_INDEX)")
	fs.IntVar(&st.MaxCycles, "cycles", st.MaxCycles, "stop after N cycles, 0 runs forever (MAX_CYCLES)")
	fs.BoolVar(&st.ShuffleWallets, "shuffle", st.ShuffleWallets, "shuffle wallet order at startup (SHUFFLE_WALLETS)")
	fs.StringVar(&st.KeystoreDir, "keystore", st.KeystoreDir, "encrypted keystore dir (KEYSTORE_DIR)")
	fs.StringVar(&st.LogLevel, "log-level", st.LogLevel, "debug, info, warn, error (LOG_LEVEL)")
	fs.StringVar(&st.LogFormat, "log-format", st.LogFormat, "console or json (LOG_FORMAT)")
	fs.StringVar(&st.MetricsAddr, "metrics", st.MetricsAddr, "serve /metrics on this address (METRICS_ADDR)")
	fs.StringVar(&st.JournalDSN, "journal", st.JournalDSN, "postgres DSN for the swap journal, empty keeps it in memory (JOURNAL_DSN)")
	fs.BoolVar(&cf.listVenues, "list-venues", false, "print builtin venues and exit")
	return &cf
}

func printConfig(st config.Settings, p *config.Profile, chainID *big.Int, wallets []*wallet.Wallet) {
	v := p.Venue
	fmt.Println("=== CONFIG (.env) ===")
	fmt.Println("RPC_URL           :", maskURL(st.RPCURL))
	fmt.Println("RPC_PROXY         :", maskURL(st.RPCProxy))
	fmt.Println("CHAIN_ID          :", chainID.String())
	fmt.Println("VENUE             :", v.Name, "("+string(v.Kind)+")")
	fmt.Println("  -> router       :", v.Router.Hex())
	fmt.Println("  -> gas limits   :", fmt.Sprintf("swap %d / approve %d", v.SwapGasLimit, v.ApproveGasLimit))
	fmt.Println("  -> gas mult     :", fmt.Sprintf("%d%%", v.GasMultiplierPct))
	if v.FixedGasPrice != nil {
		fmt.Println("  -> gas price    :", swapcore.FormatGwei(v.FixedGasPrice), "gwei (fixed)")
	}
	fmt.Println("  -> reserve      :", swapcore.FormatEther(v.Reserve))
	fmt.Println("Tokens            :", strings.Join(p.Registry.Symbols(), ", "))
	fmt.Println("Pair policy       :", p.PairPolicy)
	if p.Hop != nil {
		fmt.Println("  -> hop          :", p.Hop.Symbol)
	}
	fmt.Println("Percent (per mil) :", fmt.Sprintf("%d-%d", p.PercentMin, p.PercentMax))
	fmt.Println("Swaps per wallet  :", p.SwapsPerWallet)
	fmt.Println("Delays swap       :", p.SwapDelay)
	fmt.Println("Delays wallet     :", p.WalletDelay)
	fmt.Println("Delays cycle      :", p.CycleDelay)
	fmt.Println("Delays skip       :", p.SkipDelay)
	fmt.Println("Max cycles        :", st.MaxCycles)
	fmt.Println("Approve all       :", p.ApproveAll)
	fmt.Println("Journal           :", journalKind(st.JournalDSN))
	if st.KeystorePassphrase != "" {
		fmt.Println("KEYSTORE_PASS     :", maskHex(st.KeystorePassphrase))
	}
	fmt.Println("Wallets           :", len(wallets))
	for i, w := range wallets {
		fmt.Printf("  %2d. %s (%s)\n", i+1, w.Address.Hex(), w.Source)
	}
	fmt.Println("=====================")
}

func journalKind(dsn string) string {
	if dsn == "" {
		return fmt.Sprintf("memory (last %d)", memoryJournalLimit)
	}
	return "postgres " + maskURL(dsn)
}
