package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func RegisterUniversity(name, country string) Call {
	return Call{Contract: Registry, Method: "registerUniversity", Args: []any{name, country}}
}

func ApproveUniversity(university common.Address) Call {
	return Call{Contract: Registry, Method: "approveUniversity", Args: []any{university}}
}

func GrantUniversityRole(university common.Address) Call {
	return Call{Contract: AccessControl, Method: "grantUniversityRole", Args: []any{university}}
}

func GenerateDiploma(student common.Address, diplomaHash string) Call {
	return Call{Contract: Diploma, Method: "generateDiploma", Args: []any{student, diplomaHash}}
}

func BatchGenerateDiplomas(students []common.Address, diplomaHashes []string) Call {
	return Call{Contract: Diploma, Method: "batchGenerateDiplomas", Args: []any{students, diplomaHashes}}
}

// MintDiploma converts an issued diploma into the student's NFT.
func MintDiploma(diplomaID common.Hash, metadataURI string) Call {
	return Call{Contract: Token, Method: "mintDiploma", Args: []any{[32]byte(diplomaID), metadataURI}}
}

// WaitMined polls w for the receipt of hash every interval until it is
// available or ctx ends. A receipt with a failed status is returned together
// with ErrTransactionFailed.
func WaitMined(ctx context.Context, w Writer, hash common.Hash, interval time.Duration) (*Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := w.Receipt(ctx, hash)
		switch {
		case err == nil:
			if !receipt.Success {
				return receipt, fmt.Errorf("%w: %s", ErrTransactionFailed, hash.Hex())
			}
			return receipt, nil
		case !errors.Is(err, ErrReceiptNotFound):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
