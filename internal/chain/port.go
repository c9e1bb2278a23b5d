// Package chain defines the read/write port through which the rest of the
// service talks to the external POD contracts. Orchestration code depends on
// Port only; internal/eth provides the go-ethereum implementation and tests
// provide fakes.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ContractKind names one of the four external contracts.
type ContractKind string

const (
	AccessControl ContractKind = "access_control"
	Registry      ContractKind = "registry"
	Diploma       ContractKind = "diploma"
	Token         ContractKind = "token"
)

var (
	ErrNotConfigured     = errors.New("chain: contract address not configured")
	ErrNoSigner          = errors.New("chain: no signer configured")
	ErrReceiptNotFound   = errors.New("chain: receipt not yet available")
	ErrTransactionFailed = errors.New("chain: transaction reverted on-chain")
)

// Role is an access-control role identifier (bytes32).
type Role [32]byte

// University mirrors the registry's universities(address) tuple.
type University struct {
	Address      common.Address `json:"address"`
	Name         string         `json:"name"`
	Country      string         `json:"country"`
	IsApproved   bool           `json:"is_approved"`
	IsRegistered bool           `json:"is_registered"`
}

// DiplomaRecord mirrors the diploma tuple returned by verifyDiploma.
type DiplomaRecord struct {
	ID          common.Hash    `json:"diploma_id"`
	University  common.Address `json:"university"`
	Student     common.Address `json:"student"`
	IssueDate   uint64         `json:"issue_date"`
	IsMinted    bool           `json:"is_minted"`
	DiplomaHash string         `json:"diploma_hash"`
}

// GasConfig is the fee/limit set attached to a write.
type GasConfig struct {
	Label                string   `json:"label"`
	GasLimit             uint64   `json:"gas_limit"`
	MaxFeePerGas         *big.Int `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas *big.Int `json:"max_priority_fee_per_gas"`
}

// Call is a contract write request: which contract, which function, which
// arguments, already typed for ABI packing.
type Call struct {
	Contract ContractKind
	Method   string
	Args     []any
}

// Receipt is the subset of a transaction receipt the service cares about.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	Success     bool        `json:"success"`
}

// Reader covers every view function used by the service.
type Reader interface {
	AdminRole(ctx context.Context) (Role, error)
	UniversityRole(ctx context.Context) (Role, error)
	HasRole(ctx context.Context, role Role, account common.Address) (bool, error)

	University(ctx context.Context, addr common.Address) (University, error)
	AllUniversities(ctx context.Context) ([]common.Address, error)
	IsUniversityApproved(ctx context.Context, addr common.Address) (bool, error)

	VerifyDiploma(ctx context.Context, id common.Hash) (bool, DiplomaRecord, error)
	StudentDiplomas(ctx context.Context, student common.Address) ([]common.Hash, error)
	IsDiplomaMinted(ctx context.Context, id common.Hash) (bool, error)

	TokenForDiploma(ctx context.Context, id common.Hash) (*big.Int, error)
	DiplomaForToken(ctx context.Context, tokenID *big.Int) (common.Hash, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
	TokenMeta(ctx context.Context) (name, symbol string, err error)
}

// Writer submits transactions and reports on their inclusion.
type Writer interface {
	// Signer returns the address writes are sent from, if one is configured.
	Signer() (common.Address, bool)

	// Send packs and submits call with the given gas configuration and
	// returns the transaction hash.
	Send(ctx context.Context, call Call, gas GasConfig) (common.Hash, error)

	// Receipt returns ErrReceiptNotFound while the transaction is pending.
	Receipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// Port is the full external-contract surface.
type Port interface {
	Reader
	Writer
}
