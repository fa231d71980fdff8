package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ligun0805/swap-runner/internal/swapcore"
)

const netBlocks = 20

var netPcts = []int{50, 95}

// printNetworkState shows head fees and what one approve + swap may cost at most.
func printNetworkState(ctx context.Context, ec *ethclient.Client, v swapcore.Venue) {
	st, err := swapcore.ReadNetState(ctx, ec, netBlocks, netPcts)
	if st.BaseFee != nil {
		fmt.Printf("[net] head %d baseFee: %s gwei\n", st.Head, swapcore.FormatGwei(st.BaseFee))
	} else {
		fmt.Printf("[net] head %d (no baseFee)\n", st.Head)
	}
	if err != nil {
		fmt.Println("[net] feeHistory error:", err)
	} else {
		fmt.Printf("[net] reward stats last %d blocks:\n", st.Blocks)
		for _, p := range st.Percentiles {
			r := st.Rewards[p]
			fmt.Printf("  p%-2d min/avg/max: %s / %s / %s gwei\n", p,
				swapcore.FormatGwei(r.Min), swapcore.FormatGwei(r.Avg), swapcore.FormatGwei(r.Max))
		}
	}
	fees, err := swapcore.SuggestFees(ctx, ec, v)
	if err != nil {
		fmt.Println("[net] fee suggestion error:", err)
		return
	}
	mode := "legacy"
	if fees.Dynamic {
		mode = "1559"
	}
	fmt.Printf("[net] max cost (%s): swap %s, approve %s\n", mode,
		swapcore.FormatEther(fees.MaxCost(v.SwapGasLimit)), swapcore.FormatEther(fees.MaxCost(v.ApproveGasLimit)))
}
