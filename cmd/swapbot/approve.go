package main

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ligun0805/swap-runner/internal/registry"
	"github.com/ligun0805/swap-runner/internal/swapcore"
	"github.com/ligun0805/swap-runner/internal/wallet"
)

// approver is satisfied by *swapcore.Executor.
type approver interface {
	CheckReserve(ctx context.Context, owner common.Address) (*big.Int, error)
	ApproveAll(ctx context.Context, w *wallet.Wallet, tokens []registry.Token) error
}

// approveWallets runs the startup approval pass. Wallets below the reserve, or whose
// reserve read fails, are skipped. Only a done ctx is returned as an error.
func approveWallets(ctx context.Context, a approver, ws []*wallet.Wallet, tokens []registry.Token, log zerolog.Logger) error {
	for _, w := range ws {
		if _, err := a.CheckReserve(ctx, w.Address); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			msg := "approve-all skipped: reserve check failed"
			if errors.Is(err, swapcore.ErrInsufficientGas) {
				msg = "approve-all skipped: native below reserve"
			}
			log.Warn().Str("wallet", w.Short()).Err(err).Msg(msg)
			continue
		}
		if err := a.ApproveAll(ctx, w, tokens); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Str("wallet", w.Short()).Err(err).Msg("approve-all incomplete")
		}
	}
	return nil
}
