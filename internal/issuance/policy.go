package issuance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"podcred/internal/chain"
)

// MaxAttempts bounds every submission policy.
const MaxAttempts = 2

// Policy is an ordered list of gas configurations, one per attempt.
type Policy struct {
	gas []chain.GasConfig
}

// Retry submits with primary and, after an unrecognised revert, once more
// with fallback.
func Retry(primary, fallback chain.GasConfig) Policy {
	return Policy{gas: []chain.GasConfig{primary, fallback}}
}

// Once submits a single attempt.
func Once(gas chain.GasConfig) Policy {
	return Policy{gas: []chain.GasConfig{gas}}
}

func (p Policy) Attempts() int {
	return min(len(p.gas), MaxAttempts)
}

// Outcome is a successful (or cancelled) submission.
type Outcome struct {
	TxHash    common.Hash     `json:"tx_hash"`
	Attempts  int             `json:"attempts"`
	Gas       chain.GasConfig `json:"gas"`
	Cancelled bool            `json:"cancelled,omitempty"`
}

// Run sends call under the policy. Cancellation by the signer resolves to a
// cancelled Outcome with no error; every other failure is a *SubmitError.
func (p Policy) Run(ctx context.Context, logger *zap.Logger, w chain.Writer, call chain.Call, msgs Messages) (Outcome, error) {
	attempts := p.Attempts()

	for i := 0; i < attempts; i++ {
		gas := p.gas[i]
		hash, err := w.Send(ctx, call, gas)
		if err == nil {
			return Outcome{TxHash: hash, Attempts: i + 1, Gas: gas}, nil
		}

		category := Classify(err)
		reason := ExtractReason(err)
		log := logger.With(
			zap.String("method", call.Method),
			zap.Int("attempt", i+1),
			zap.String("gas", gas.Label),
			zap.String("category", string(category)),
			zap.Error(err),
		)

		if category == CategoryCancelled {
			log.Info("Submission cancelled by signer")
			return Outcome{Attempts: i + 1, Gas: gas, Cancelled: true}, nil
		}

		if category.Retryable() && i+1 < attempts {
			log.Warn("Unrecognised revert, retrying with next gas configuration")
			continue
		}

		log.Warn("Submission failed")
		return Outcome{}, &SubmitError{
			Category: category,
			Message:  msgs.For(category),
			Reason:   reason,
			Attempts: i + 1,
			Err:      err,
		}
	}

	// Only reachable with an empty policy.
	return Outcome{}, &SubmitError{Category: CategoryOther, Message: msgs.Generic}
}
