package config

import (
	"os"
	"strconv"
	"strings"
)

// Settings keeps all configuration options read from the environment.
// String fields left empty fall back to the venue file during Resolve.
type Settings struct {
	RPCURL   string
	RPCProxy string
	ChainID  int64 // 0 = ask the node

	Venue     string
	VenueFile string

	PairPolicy     string
	PercentMin     string
	PercentMax     string
	SwapsPerWallet int

	SwapDelay   string // "min-max" in ms
	WalletDelay string
	CycleDelay  string
	SkipDelay   string

	MinNativeBalance string // ether units
	GasMultiplier    string // 1.5 = x1.5
	GasPriceGwei     string
	DeadlineSecs     int64
	MaxCycles        int
	ShuffleWallets   bool
	ApproveAll       string // empty keeps the venue default

	WalletIndex        int
	KeystoreDir        string
	KeystorePassphrase string

	LogLevel    string
	LogFormat   string
	MetricsAddr string
	JournalDSN  string
}

// Load reads settings from environment supporting both UPPER_CASE and lower_case keys.
func Load() Settings { return LoadFrom(os.Getenv) }

// LoadFrom is Load over an arbitrary lookup.
func LoadFrom(getenv func(string) string) Settings {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return def
	}
	getBool := func(keys []string, def bool) bool {
		s := strings.ToLower(get(keys, ""))
		if s == "" {
			return def
		}
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}

	st := Settings{}
	st.RPCURL = get([]string{"rpc_url", "RPC_URL"}, "https://testnet-rpc.monad.xyz")
	st.RPCProxy = get([]string{"rpc_proxy", "RPC_PROXY"}, "")
	st.ChainID = getInt64([]string{"chain_id", "CHAIN_ID"}, 10143)

	st.Venue = get([]string{"venue", "VENUE"}, "ambient")
	st.VenueFile = get([]string{"venue_file", "VENUE_FILE"}, "")

	st.PairPolicy = get([]string{"pair_policy", "PAIR_POLICY"}, "")
	st.PercentMin = get([]string{"percent_min", "PERCENT_MIN"}, "")
	st.PercentMax = get([]string{"percent_max", "PERCENT_MAX"}, "")
	st.SwapsPerWallet = getInt([]string{"swaps_per_wallet", "SWAPS_PER_WALLET"}, 0)

	st.SwapDelay = get([]string{"swap_delay_ms", "SWAP_DELAY_MS"}, "")
	st.WalletDelay = get([]string{"wallet_delay_ms", "WALLET_DELAY_MS"}, "")
	st.CycleDelay = get([]string{"cycle_delay_ms", "CYCLE_DELAY_MS"}, "")
	st.SkipDelay = get([]string{"skip_delay_ms", "SKIP_DELAY_MS"}, "")

	st.MinNativeBalance = get([]string{"min_native_balance", "MIN_NATIVE_BALANCE"}, "")
	st.GasMultiplier = get([]string{"gas_multiplier", "GAS_MULTIPLIER"}, "")
	st.GasPriceGwei = get([]string{"gas_price_gwei", "GAS_PRICE_GWEI"}, "")
	st.DeadlineSecs = getInt64([]string{"deadline_secs", "DEADLINE_SECS"}, 0)
	st.MaxCycles = getInt([]string{"max_cycles", "MAX_CYCLES"}, 0)
	st.ShuffleWallets = getBool([]string{"shuffle_wallets", "SHUFFLE_WALLETS"}, true)
	st.ApproveAll = strings.ToLower(get([]string{"approve_all", "APPROVE_ALL"}, ""))

	st.WalletIndex = getInt([]string{"wallet_index", "WALLET_INDEX"}, 0)
	st.KeystoreDir = get([]string{"keystore_dir", "KEYSTORE_DIR"}, "")
	st.KeystorePassphrase = get([]string{"keystore_passphrase", "KEYSTORE_PASSPHRASE"}, "")

	st.LogLevel = get([]string{"log_level", "LOG_LEVEL"}, "info")
	st.LogFormat = get([]string{"log_format", "LOG_FORMAT"}, "console")
	st.MetricsAddr = get([]string{"metrics_addr", "METRICS_ADDR"}, "")
	st.JournalDSN = get([]string{"journal_dsn", "JOURNAL_DSN"}, "")

	return st
}
