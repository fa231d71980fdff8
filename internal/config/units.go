package config

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ligun0805/swap-runner/internal/swapcore"
)

// Range is an inclusive random delay window.
type Range struct {
	Min time.Duration
	Max time.Duration
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Min, r.Max)
}

// ParseRange reads "min-max" milliseconds. A single number fixes both ends.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		hi = lo
	}
	a, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad delay range %q", swapcore.ErrConfiguration, s)
	}
	b, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad delay range %q", swapcore.ErrConfiguration, s)
	}
	if a < 0 || b < a {
		return Range{}, fmt.Errorf("%w: delay range %q must satisfy 0 <= min <= max", swapcore.ErrConfiguration, s)
	}
	return Range{Min: time.Duration(a) * time.Millisecond, Max: time.Duration(b) * time.Millisecond}, nil
}

// PerMille converts a percentage string ("7.5") to tenths of a percent (75).
func PerMille(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")))
	if err != nil {
		return 0, fmt.Errorf("%w: bad percentage %q", swapcore.ErrConfiguration, s)
	}
	pm := d.Shift(1)
	if !pm.Equal(pm.Truncate(0)) {
		return 0, fmt.Errorf("%w: percentage %q finer than 0.1%%", swapcore.ErrConfiguration, s)
	}
	return pm.IntPart(), nil
}

// Ether converts a decimal ether amount to wei.
func Ether(s string) (*big.Int, error) { return scaled(s, 18, "ether amount") }

// Gwei converts a decimal gwei amount to wei.
func Gwei(s string) (*big.Int, error) { return scaled(s, 9, "gwei amount") }

func scaled(s string, exp int32, what string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("%w: bad %s %q", swapcore.ErrConfiguration, what, s)
	}
	return d.Shift(exp).Truncate(0).BigInt(), nil
}

// MultiplierPct converts "1.5" to 150.
func MultiplierPct(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "x")))
	if err != nil {
		return 0, fmt.Errorf("%w: bad gas multiplier %q", swapcore.ErrConfiguration, s)
	}
	pct := d.Shift(2).Truncate(0).IntPart()
	if pct < 100 {
		return 0, fmt.Errorf("%w: gas multiplier %q below 1", swapcore.ErrConfiguration, s)
	}
	return pct, nil
}
