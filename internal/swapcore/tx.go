package swapcore

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// buildTx returns an EIP-1559 tx when fees are dynamic, legacy otherwise.
func buildTx(chain *big.Int, nonce uint64, to common.Address, gasLimit uint64, fees FeeParams, data []byte) *types.Transaction {
	if fees.Dynamic {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chain,
			Nonce:     nonce,
			Gas:       gasLimit,
			GasTipCap: new(big.Int).Set(fees.TipCap),
			GasFeeCap: new(big.Int).Set(fees.FeeCap),
			To:        &to,
			Value:     new(big.Int),
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: new(big.Int).Set(fees.GasPrice),
		Gas:      gasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
}

// Sign transaction with latest signer for given chain ID.
func signTx(tx *types.Transaction, chain *big.Int, prv *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chain)
	return types.SignTx(tx, signer, prv)
}
