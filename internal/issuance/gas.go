package issuance

import (
	"math/big"

	"podcred/internal/chain"
)

const (
	primaryGasLimit  = 500_000
	fallbackGasLimit = 800_000

	batchBaseGas     = 150_000
	batchPerEntryGas = 120_000
	// MaxGasLimit keeps a full fallback batch well under an L2 block.
	MaxGasLimit = 20_000_000
)

func milliGwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

// PrimaryGas is the first-attempt configuration for single writes.
func PrimaryGas() chain.GasConfig {
	return chain.GasConfig{
		Label:                "primary",
		GasLimit:             primaryGasLimit,
		MaxFeePerGas:         milliGwei(100),
		MaxPriorityFeePerGas: milliGwei(10),
	}
}

// FallbackGas raises limit and fees for the single retry.
func FallbackGas() chain.GasConfig {
	return chain.GasConfig{
		Label:                "fallback",
		GasLimit:             fallbackGasLimit,
		MaxFeePerGas:         milliGwei(200),
		MaxPriorityFeePerGas: milliGwei(20),
	}
}

// BatchGas returns the primary and fallback configurations for a batch of n
// entries. The limit grows linearly with n; the fallback is 1.5x.
func BatchGas(n int) (chain.GasConfig, chain.GasConfig) {
	limit := uint64(batchBaseGas + batchPerEntryGas*n)

	primary := PrimaryGas()
	primary.Label = "batch-primary"
	primary.GasLimit = min(limit, MaxGasLimit)

	fallback := FallbackGas()
	fallback.Label = "batch-fallback"
	fallback.GasLimit = min(limit*3/2, MaxGasLimit)

	return primary, fallback
}
