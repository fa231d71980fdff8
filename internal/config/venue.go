package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/ligun0805/swap-runner/internal/registry"
	"github.com/ligun0805/swap-runner/internal/swapcore"
)

//go:embed venues/*.yaml
var builtinVenues embed.FS

// VenueFile is the on-disk venue description.
type VenueFile struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Router    string `yaml:"router"`
	PoolIndex uint64 `yaml:"pool_index"`
	FeeTier   uint32 `yaml:"fee_tier"`

	Gas struct {
		SwapLimit    uint64 `yaml:"swap_limit"`
		ApproveLimit uint64 `yaml:"approve_limit"`
		Multiplier   string `yaml:"multiplier"`
		PriceGwei    string `yaml:"price_gwei"`
		Legacy       bool   `yaml:"legacy"`
	} `yaml:"gas"`

	MinNative    string `yaml:"min_native"`
	Explorer     string `yaml:"explorer"`
	DeadlineSecs int64  `yaml:"deadline_secs"`

	PairPolicy     string `yaml:"pair_policy"`
	SwapsPerWallet int    `yaml:"swaps_per_wallet"`
	ApproveAll     bool   `yaml:"approve_all"`
	Hop            string `yaml:"hop"`
	Percent        struct {
		Min string `yaml:"min"`
		Max string `yaml:"max"`
	} `yaml:"percent"`
	Delays struct {
		Swap   string `yaml:"swap"`
		Wallet string `yaml:"wallet"`
		Cycle  string `yaml:"cycle"`
		Skip   string `yaml:"skip"`
	} `yaml:"delays"`

	Tokens []TokenEntry `yaml:"tokens"`
	Pairs  []string     `yaml:"pairs"` // "IN/OUT"
}

type TokenEntry struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
}

// BuiltinVenues lists the embedded venue names.
func BuiltinVenues() []string {
	entries, _ := fs.ReadDir(builtinVenues, "venues")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out
}

// LoadVenue reads path when set, otherwise the embedded venue called name.
func LoadVenue(name, path string) (*VenueFile, error) {
	var (
		raw []byte
		err error
	)
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = builtinVenues.ReadFile("venues/" + strings.ToLower(strings.TrimSpace(name)) + ".yaml")
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: unknown venue %q (builtin: %s)", swapcore.ErrConfiguration, name, strings.Join(BuiltinVenues(), ", "))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read venue: %w", err)
	}
	return ParseVenue(raw)
}

func ParseVenue(raw []byte) (*VenueFile, error) {
	var vf VenueFile
	if err := yaml.Unmarshal(raw, &vf); err != nil {
		return nil, fmt.Errorf("%w: parse venue yaml: %v", swapcore.ErrConfiguration, err)
	}
	if vf.Name == "" {
		return nil, fmt.Errorf("%w: venue has no name", swapcore.ErrConfiguration)
	}
	return &vf, nil
}

// Profile is the fully resolved run configuration: env overrides applied on top of the venue.
type Profile struct {
	Venue    swapcore.Venue
	Registry *registry.Registry
	Pairs    []registry.Pair // allow-list for the shuffled policy
	Hop      *registry.Token

	PairPolicy     string
	PercentMin     int64 // per-mille
	PercentMax     int64
	SwapsPerWallet int
	DeadlineSecs   int64
	ApproveAll     bool

	SwapDelay   Range
	WalletDelay Range
	CycleDelay  Range
	SkipDelay   Range
}

func pick(override, def string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return def
}

// Resolve merges st over vf and validates the result.
func Resolve(st Settings, vf *VenueFile) (*Profile, error) {
	cfgErr := func(format string, args ...any) error {
		return fmt.Errorf("%w: venue %s: %s", swapcore.ErrConfiguration, vf.Name, fmt.Sprintf(format, args...))
	}

	kind, err := swapcore.ParseKind(vf.Kind)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(vf.Router) {
		return nil, cfgErr("bad router address %q", vf.Router)
	}

	toks := make([]registry.Token, 0, len(vf.Tokens))
	for _, t := range vf.Tokens {
		if !common.IsHexAddress(t.Address) {
			return nil, cfgErr("token %s has bad address %q", t.Symbol, t.Address)
		}
		toks = append(toks, registry.Token{Symbol: t.Symbol, Address: common.HexToAddress(t.Address), Decimals: t.Decimals})
	}
	reg, err := registry.New(toks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", swapcore.ErrConfiguration, err)
	}

	p := &Profile{Registry: reg}

	list := make([][2]string, 0, len(vf.Pairs))
	for _, s := range vf.Pairs {
		in, out, ok := strings.Cut(s, "/")
		if !ok {
			return nil, cfgErr("pair %q is not IN/OUT", s)
		}
		list = append(list, [2]string{strings.TrimSpace(in), strings.TrimSpace(out)})
	}
	if p.Pairs, err = reg.Pairs(list); err != nil {
		return nil, fmt.Errorf("%w: %v", swapcore.ErrConfiguration, err)
	}
	if vf.Hop != "" {
		hop, err := reg.MustLookup(vf.Hop)
		if err != nil {
			return nil, fmt.Errorf("%w: hop: %v", swapcore.ErrConfiguration, err)
		}
		p.Hop = &hop
	}

	mult, err := MultiplierPct(pick(st.GasMultiplier, pick(vf.Gas.Multiplier, "1")))
	if err != nil {
		return nil, err
	}
	reserve, err := Ether(pick(st.MinNativeBalance, pick(vf.MinNative, "0")))
	if err != nil {
		return nil, err
	}
	var fixed *big.Int
	if s := pick(st.GasPriceGwei, vf.Gas.PriceGwei); s != "" {
		if fixed, err = Gwei(s); err != nil {
			return nil, err
		}
	}

	p.Venue = swapcore.Venue{
		Name:             vf.Name,
		Kind:             kind,
		Router:           common.HexToAddress(vf.Router),
		PoolIndex:        new(big.Int).SetUint64(vf.PoolIndex),
		FeeTier:          vf.FeeTier,
		SwapGasLimit:     vf.Gas.SwapLimit,
		ApproveGasLimit:  vf.Gas.ApproveLimit,
		GasMultiplierPct: mult,
		FixedGasPrice:    fixed,
		LegacyPricing:    vf.Gas.Legacy,
		Reserve:          reserve,
		Explorer:         vf.Explorer,
	}
	if err := p.Venue.Validate(); err != nil {
		return nil, err
	}

	p.PairPolicy = strings.ToLower(pick(st.PairPolicy, pick(vf.PairPolicy, "random")))
	if p.PairPolicy == "random-hop" && kind != swapcore.KindUniswapV2 {
		return nil, cfgErr("random-hop needs a %s router, got %s", swapcore.KindUniswapV2, kind)
	}
	if p.Hop != nil && kind != swapcore.KindUniswapV2 {
		return nil, cfgErr("hop token %s needs a %s router, got %s", p.Hop.Symbol, swapcore.KindUniswapV2, kind)
	}
	if p.PercentMin, err = PerMille(pick(st.PercentMin, pick(vf.Percent.Min, "5"))); err != nil {
		return nil, err
	}
	if p.PercentMax, err = PerMille(pick(st.PercentMax, pick(vf.Percent.Max, "10"))); err != nil {
		return nil, err
	}

	p.SwapsPerWallet = vf.SwapsPerWallet
	if st.SwapsPerWallet > 0 {
		p.SwapsPerWallet = st.SwapsPerWallet
	}
	if p.SwapsPerWallet <= 0 {
		p.SwapsPerWallet = 10
	}
	p.DeadlineSecs = vf.DeadlineSecs
	if st.DeadlineSecs > 0 {
		p.DeadlineSecs = st.DeadlineSecs
	}
	if p.DeadlineSecs <= 0 {
		p.DeadlineSecs = 1200
	}
	p.ApproveAll = vf.ApproveAll
	switch st.ApproveAll {
	case "":
	case "1", "true", "yes", "on":
		p.ApproveAll = true
	default:
		p.ApproveAll = false
	}

	for _, d := range []struct {
		dst       *Range
		env, file string
		def       string
	}{
		{&p.SwapDelay, st.SwapDelay, vf.Delays.Swap, "5000-10000"},
		{&p.WalletDelay, st.WalletDelay, vf.Delays.Wallet, "10000-20000"},
		{&p.CycleDelay, st.CycleDelay, vf.Delays.Cycle, "30000-60000"},
		{&p.SkipDelay, st.SkipDelay, vf.Delays.Skip, "1000-5000"},
	} {
		if *d.dst, err = ParseRange(pick(d.env, pick(d.file, d.def))); err != nil {
			return nil, err
		}
	}
	return p, nil
}
