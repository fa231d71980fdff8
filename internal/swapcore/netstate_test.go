package swapcore

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feeHistoryStub struct {
	baseFee *big.Int
	reward  [][]*big.Int
	err     error
	asked   []float64
}

func (f *feeHistoryStub) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1234), BaseFee: f.baseFee}, nil
}

func (f *feeHistoryStub) FeeHistory(_ context.Context, _ uint64, _ *big.Int, p []float64) (*ethereum.FeeHistory, error) {
	f.asked = p
	if f.err != nil {
		return nil, f.err
	}
	return &ethereum.FeeHistory{Reward: f.reward}, nil
}

func TestReadNetState(t *testing.T) {
	g := func(n int64) *big.Int { return mul(big.NewInt(n), gwei) }
	stub := &feeHistoryStub{
		baseFee: g(50),
		reward:  [][]*big.Int{{g(1), g(3)}, {g(2), g(9)}, {g(3), g(6)}},
	}
	st, err := ReadNetState(context.Background(), stub, 3, []int{50, 95})
	require.NoError(t, err)

	assert.Equal(t, []float64{50, 95}, stub.asked)
	assert.Equal(t, uint64(1234), st.Head)
	assert.Equal(t, 3, st.Blocks)
	assert.Equal(t, 0, g(50).Cmp(st.BaseFee))

	p50 := st.Rewards[50]
	assert.Equal(t, 0, g(1).Cmp(p50.Min))
	assert.Equal(t, 0, g(2).Cmp(p50.Avg))
	assert.Equal(t, 0, g(3).Cmp(p50.Max))
	assert.Equal(t, 0, g(6).Cmp(st.Rewards[95].Avg))
	assert.Equal(t, 0, g(9).Cmp(st.Rewards[95].Max))
}

func TestReadNetStateWithoutHistory(t *testing.T) {
	stub := &feeHistoryStub{err: errors.New("the method eth_feeHistory does not exist")}
	st, err := ReadNetState(context.Background(), stub, 0, nil)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, uint64(1234), st.Head)
	assert.Nil(t, st.BaseFee)
	assert.Nil(t, st.Rewards)

	_, err = ReadNetState(context.Background(), &feeHistoryStub{}, 5, []int{150})
	assert.ErrorIs(t, err, ErrConfiguration)
}
