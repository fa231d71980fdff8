package metrics

import (
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSwap(t *testing.T) {
	before := testutil.ToFloat64(SwapsTotal.WithLabelValues("testvenue", "ok"))
	ObserveSwap("testvenue", "ok", 150_000, big.NewInt(5e17))
	ObserveSwap("testvenue", "reverted", 0, nil)

	assert.Equal(t, before+1, testutil.ToFloat64(SwapsTotal.WithLabelValues("testvenue", "ok")))
	assert.Equal(t, float64(150_000), testutil.ToFloat64(GasUsedTotal.WithLabelValues("testvenue")))
	assert.InDelta(t, 0.5, testutil.ToFloat64(FeePaidTotal.WithLabelValues("testvenue")), 1e-9)
	assert.Equal(t, float64(1), testutil.ToFloat64(SwapsTotal.WithLabelValues("testvenue", "reverted")))
}

func TestObserveBalance(t *testing.T) {
	ObserveBalance("0xf39F...2266", big.NewInt(2e18))
	assert.InDelta(t, 2.0, testutil.ToFloat64(NativeBalance.WithLabelValues("0xf39F...2266")), 1e-9)
	ObserveBalance("0xf39F...2266", nil)
	assert.InDelta(t, 2.0, testutil.ToFloat64(NativeBalance.WithLabelValues("0xf39F...2266")), 1e-9)
}

func TestServerExposesMetrics(t *testing.T) {
	CyclesTotal.Inc()
	srv := NewServer(":0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "cycles_total")

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "swaps_total" {
			found = true
		}
	}
	assert.True(t, found, "swaps_total registered")
}
