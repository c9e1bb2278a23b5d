// Package chaintest provides an in-memory chain.Port for tests.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"podcred/internal/chain"
)

var (
	AdminRole      = chain.Role(crypto.Keccak256Hash([]byte("ADMIN_ROLE")))
	UniversityRole = chain.Role(crypto.Keccak256Hash([]byte("UNIVERSITY_ROLE")))
)

// Sent records one Send invocation.
type Sent struct {
	Call chain.Call
	Gas  chain.GasConfig
	Hash common.Hash
}

// Fake is a chain.Port backed by maps. Zero value is not usable; use New.
type Fake struct {
	mu sync.Mutex

	Universities map[common.Address]chain.University
	Roles        map[chain.Role]map[common.Address]bool
	Diplomas     map[common.Hash]chain.DiplomaRecord
	Students     map[common.Address][]common.Hash
	Tokens       map[common.Hash]*big.Int
	Owners       map[string]common.Address
	URIs         map[string]string

	// ReadErr, when set, is returned by every read.
	ReadErr error
	// VerifyErr, when set, is returned by VerifyDiploma only.
	VerifyErr error
	// UniversityErr, when set, is returned by University only.
	UniversityErr error

	SignerAddr common.Address
	NoSigner   bool

	// SendErrs[i] is returned by the i-th Send; nil or missing means success.
	SendErrs []error
	Sent     []Sent
	// OnSend runs for every successful Send with the fake locked, so it may
	// mutate the maps directly to simulate the contract's effect.
	OnSend func(f *Fake, call chain.Call)

	// PendingPolls is how many Receipt calls report ErrReceiptNotFound
	// before the receipt becomes available.
	PendingPolls int
	// FailReceipts marks mined transactions as reverted.
	FailReceipts bool

	reads    int
	receipts map[common.Hash]*chain.Receipt
}

func New() *Fake {
	return &Fake{
		Universities: make(map[common.Address]chain.University),
		Roles: map[chain.Role]map[common.Address]bool{
			AdminRole:      {},
			UniversityRole: {},
		},
		Diplomas:   make(map[common.Hash]chain.DiplomaRecord),
		Students:   make(map[common.Address][]common.Hash),
		Tokens:     make(map[common.Hash]*big.Int),
		Owners:     make(map[string]common.Address),
		URIs:       make(map[string]string),
		SignerAddr: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		receipts:   make(map[common.Hash]*chain.Receipt),
	}
}

// Reads reports how many read calls have been made.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// SentCalls returns a copy of the recorded writes.
func (f *Fake) SentCalls() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sent, len(f.Sent))
	copy(out, f.Sent)
	return out
}

func (f *Fake) read() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.ReadErr
}

func (f *Fake) AdminRole(ctx context.Context) (chain.Role, error) {
	if err := f.read(); err != nil {
		return chain.Role{}, err
	}
	return AdminRole, nil
}

func (f *Fake) UniversityRole(ctx context.Context) (chain.Role, error) {
	if err := f.read(); err != nil {
		return chain.Role{}, err
	}
	return UniversityRole, nil
}

func (f *Fake) HasRole(ctx context.Context, role chain.Role, account common.Address) (bool, error) {
	if err := f.read(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Roles[role][account], nil
}

func (f *Fake) University(ctx context.Context, addr common.Address) (chain.University, error) {
	if err := f.read(); err != nil {
		return chain.University{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UniversityErr != nil {
		return chain.University{}, f.UniversityErr
	}
	u := f.Universities[addr]
	u.Address = addr
	return u, nil
}

func (f *Fake) AllUniversities(ctx context.Context) ([]common.Address, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]common.Address, 0, len(f.Universities))
	for addr := range f.Universities {
		out = append(out, addr)
	}
	return out, nil
}

func (f *Fake) IsUniversityApproved(ctx context.Context, addr common.Address) (bool, error) {
	if err := f.read(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Universities[addr].IsApproved, nil
}

func (f *Fake) VerifyDiploma(ctx context.Context, id common.Hash) (bool, chain.DiplomaRecord, error) {
	if err := f.read(); err != nil {
		return false, chain.DiplomaRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.VerifyErr != nil {
		return false, chain.DiplomaRecord{}, f.VerifyErr
	}
	d, ok := f.Diplomas[id]
	return ok, d, nil
}

func (f *Fake) StudentDiplomas(ctx context.Context, student common.Address) ([]common.Hash, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Hash(nil), f.Students[student]...), nil
}

func (f *Fake) IsDiplomaMinted(ctx context.Context, id common.Hash) (bool, error) {
	if err := f.read(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Diplomas[id].IsMinted, nil
}

func (f *Fake) TokenForDiploma(ctx context.Context, id common.Hash) (*big.Int, error) {
	if err := f.read(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.Tokens[id]; ok {
		return new(big.Int).Set(t), nil
	}
	return new(big.Int), nil
}

func (f *Fake) DiplomaForToken(ctx context.Context, tokenID *big.Int) (common.Hash, error) {
	if err := f.read(); err != nil {
		return common.Hash{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, t := range f.Tokens {
		if t.Cmp(tokenID) == 0 {
			return id, nil
		}
	}
	return common.Hash{}, fmt.Errorf("execution reverted: token does not exist")
}

func (f *Fake) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	if err := f.read(); err != nil {
		return common.Address{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Owners[tokenID.String()], nil
}

func (f *Fake) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	if err := f.read(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.URIs[tokenID.String()], nil
}

func (f *Fake) TokenMeta(ctx context.Context) (string, string, error) {
	if err := f.read(); err != nil {
		return "", "", err
	}
	return "Proof of Degree", "POD", nil
}

func (f *Fake) Signer() (common.Address, bool) {
	return f.SignerAddr, !f.NoSigner
}

func (f *Fake) Send(ctx context.Context, call chain.Call, gas chain.GasConfig) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.NoSigner {
		return common.Hash{}, chain.ErrNoSigner
	}

	idx := len(f.Sent)
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s/%d", call.Method, idx)))
	f.Sent = append(f.Sent, Sent{Call: call, Gas: gas, Hash: hash})

	if idx < len(f.SendErrs) && f.SendErrs[idx] != nil {
		return common.Hash{}, f.SendErrs[idx]
	}

	if f.OnSend != nil {
		f.OnSend(f, call)
	}
	f.receipts[hash] = &chain.Receipt{TxHash: hash, BlockNumber: uint64(idx + 1), GasUsed: gas.GasLimit / 2, Success: !f.FailReceipts}
	return hash, nil
}

func (f *Fake) Receipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PendingPolls > 0 {
		f.PendingPolls--
		return nil, chain.ErrReceiptNotFound
	}
	r, ok := f.receipts[hash]
	if !ok {
		return nil, chain.ErrReceiptNotFound
	}
	return r, nil
}

var _ chain.Port = (*Fake)(nil)
