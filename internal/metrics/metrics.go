package metrics

import (
	"math/big"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SwapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swaps_total", Help: "Swap attempts by outcome"},
		[]string{"venue", "outcome"},
	)
	GasUsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swap_gas_used_total", Help: "Gas consumed by confirmed swaps"},
		[]string{"venue"},
	)
	FeePaidTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swap_fee_paid_native_total", Help: "Fees paid by confirmed swaps, native units"},
		[]string{"venue"},
	)
	NativeBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "wallet_native_balance", Help: "Last observed native balance, native units"},
		[]string{"wallet"},
	)
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "cycles_total", Help: "Completed passes over the wallet set"},
	)
)

func init() {
	prometheus.MustRegister(SwapsTotal, GasUsedTotal, FeePaidTotal, NativeBalance, CyclesTotal)
}

// ObserveSwap counts one attempt. gas and fee are only added for confirmed txs.
func ObserveSwap(venue, outcome string, gasUsed uint64, feeWei *big.Int) {
	SwapsTotal.WithLabelValues(venue, outcome).Inc()
	if gasUsed > 0 {
		GasUsedTotal.WithLabelValues(venue).Add(float64(gasUsed))
	}
	if feeWei != nil && feeWei.Sign() > 0 {
		FeePaidTotal.WithLabelValues(venue).Add(weiToNative(feeWei))
	}
}

func ObserveBalance(wallet string, wei *big.Int) {
	if wei == nil {
		return
	}
	NativeBalance.WithLabelValues(wallet).Set(weiToNative(wei))
}

func weiToNative(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return f
}

// NewServer builds the /metrics server without starting it.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
