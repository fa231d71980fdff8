package swapcore

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeeHistoryReader is satisfied by *ethclient.Client.
type FeeHistoryReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
}

// RewardStats aggregates priority fees paid at one percentile.
type RewardStats struct {
	Min *big.Int
	Avg *big.Int
	Max *big.Int
}

// NetState is a snapshot of recent fee conditions.
type NetState struct {
	Head        uint64
	BaseFee     *big.Int // nil before London
	Blocks      int      // rows actually returned
	Percentiles []int
	Rewards     map[int]RewardStats
}

// ReadNetState reads the head and reward percentiles over the last blocks.
// On chains without fee history the head is still returned alongside the error.
func ReadNetState(ctx context.Context, c FeeHistoryReader, blocks int, percentiles []int) (NetState, error) {
	if blocks <= 0 {
		blocks = 20
	}
	if len(percentiles) == 0 {
		percentiles = []int{50, 95}
	}
	var st NetState
	h, err := c.HeaderByNumber(ctx, nil)
	if err != nil {
		return st, networkError("head", err)
	}
	st.Head = h.Number.Uint64()
	if h.BaseFee != nil {
		st.BaseFee = new(big.Int).Set(h.BaseFee)
	}

	pf := make([]float64, len(percentiles))
	for i, p := range percentiles {
		if p <= 0 || p > 100 {
			return st, fmt.Errorf("%w: percentile %d out of range", ErrConfiguration, p)
		}
		pf[i] = float64(p)
	}
	fh, err := c.FeeHistory(ctx, uint64(blocks), nil, pf)
	if err != nil {
		return st, networkError("fee history", err)
	}

	st.Percentiles = percentiles
	st.Rewards = make(map[int]RewardStats, len(percentiles))
	for j, p := range percentiles {
		s := RewardStats{Avg: new(big.Int), Max: new(big.Int)}
		n := 0
		for _, row := range fh.Reward {
			if j >= len(row) || row[j] == nil {
				continue
			}
			v := row[j]
			if s.Min == nil || v.Cmp(s.Min) < 0 {
				s.Min = new(big.Int).Set(v)
			}
			if v.Cmp(s.Max) > 0 {
				s.Max = new(big.Int).Set(v)
			}
			s.Avg.Add(s.Avg, v)
			n++
		}
		if n > 0 {
			s.Avg.Quo(s.Avg, big.NewInt(int64(n)))
		} else {
			s.Min = new(big.Int)
		}
		st.Rewards[p] = s
	}
	st.Blocks = len(fh.Reward)
	return st, nil
}
