package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ligun0805/swap-runner/internal/journal"
	"github.com/ligun0805/swap-runner/internal/metrics"
	"github.com/ligun0805/swap-runner/internal/registry"
	"github.com/ligun0805/swap-runner/internal/swapcore"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

type outcome int

const (
	swapped outcome = iota // attempted, successful or not
	skipped
	abortWallet
)

// attempt plans and executes one pair. The error is non-nil only when ctx is done.
func (s *Scheduler) attempt(ctx context.Context, log zerolog.Logger, w *wallet.Wallet, pair registry.Pair) (outcome, error) {
	plog := log.With().Str("pair", pair.String()).Logger()

	intent, ok, err := s.opts.Planner.Plan(ctx, w, pair)
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if err != nil {
		s.stats.Skipped++
		plog.Warn().Str("kind", swapcore.KindLabel(err)).Msg("pair skipped: " + reasonOf(err))
		return skipped, nil
	}
	if !ok {
		s.stats.Skipped++
		plog.Info().Msg("pair skipped: no " + pair.In.Symbol + " to swap")
		return skipped, nil
	}

	s.stats.Attempts++
	res, err := s.opts.Swapper.Execute(ctx, intent, func(st swapcore.Stage) { s.set(fromStage(st)) })
	if ctx.Err() != nil {
		if res.TxHash != (common.Hash{}) {
			plog.Info().Str("tx", res.TxHash.Hex()).Msg("in-flight swap abandoned")
		}
		return 0, ctx.Err()
	}
	s.record(ctx, plog, intent, res, err)

	venue := s.opts.Swapper.Venue()
	if err == nil {
		s.stats.Succeeded++
		ev := plog.Info().
			Str("amount", swapcore.FormatUnits(intent.Amount, pair.In.Decimals)+" "+pair.In.Symbol).
			Str("share", fmtShare(intent.PerMille)).
			Str("tx", venue.TxLink(res.TxHash)).
			Uint64("block", res.BlockNumber).
			Uint64("gas_used", res.GasUsed).
			Str("fee", swapcore.FormatEther(res.FeePaid))
		if res.RemainingNative != nil {
			ev = ev.Str("native_left", swapcore.FormatEther(res.RemainingNative))
		}
		ev.Msg("swap confirmed")
		metrics.ObserveBalance(w.Short(), res.RemainingNative)
		return swapped, nil
	}

	s.stats.Failed++
	ev := plog.Warn().Str("kind", swapcore.KindLabel(err))
	if res.TxHash != (common.Hash{}) {
		ev = ev.Str("tx", venue.TxLink(res.TxHash))
	}
	ev.Msg("swap failed: " + reasonOf(err))

	switch {
	case errors.Is(err, swapcore.ErrInsufficientGas):
		plog.Warn().Msg("wallet aborted for this cycle")
		return abortWallet, nil
	case errors.Is(err, swapcore.ErrInsufficientBalance):
		return skipped, nil
	}

	native, rerr := s.opts.Swapper.CheckReserve(ctx, w.Address)
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	metrics.ObserveBalance(w.Short(), native)
	if errors.Is(rerr, swapcore.ErrInsufficientGas) {
		plog.Warn().Msg("wallet aborted for this cycle: " + reasonOf(rerr))
		return abortWallet, nil
	}
	return swapped, nil
}

func (s *Scheduler) record(ctx context.Context, log zerolog.Logger, in swapcore.SwapIntent, res swapcore.SwapResult, err error) {
	venue := s.opts.Swapper.Venue().Name
	label := swapcore.KindLabel(err)
	metrics.ObserveSwap(venue, label, res.GasUsed, res.FeePaid)
	if s.opts.Journal == nil {
		return
	}
	e := &journal.Entry{
		Time:     s.opts.Now().UTC(),
		Wallet:   in.Wallet.Address.Hex(),
		Venue:    venue,
		TokenIn:  in.Pair.In.Symbol,
		TokenOut: in.Pair.Out.Symbol,
		Amount:   in.Amount,
		PerMille: in.PerMille,
		Outcome:  label,
		GasUsed:  res.GasUsed,
		FeePaid:  res.FeePaid,
	}
	if in.Pair.Hop != nil {
		e.Hop = in.Pair.Hop.Symbol
	}
	if res.TxHash != (common.Hash{}) {
		e.TxHash = res.TxHash.Hex()
	}
	if err != nil {
		e.Reason = reasonOf(err)
	}
	if jerr := s.opts.Journal.Append(ctx, e); jerr != nil {
		log.Warn().Err(jerr).Msg("journal append failed")
	}
}

func fmtShare(perMille int64) string {
	if perMille%10 == 0 {
		return fmt.Sprintf("%d%%", perMille/10)
	}
	return fmt.Sprintf("%d.%d%%", perMille/10, perMille%10)
}
