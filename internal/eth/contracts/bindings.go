package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Bound is a parsed ABI bound to a deployed address.
type Bound struct {
	address  common.Address
	abi      abi.ABI
	caller   bind.ContractCaller
	contract *bind.BoundContract
}

func newBound(address common.Address, abiJSON string, backend bind.ContractBackend) (*Bound, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return &Bound{
		address:  address,
		abi:      parsed,
		caller:   backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

func (b *Bound) Address() common.Address {
	return b.address
}

// Transact packs method with args and submits it using opts.
func (b *Bound) Transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error) {
	return b.contract.Transact(opts, method, args...)
}

// Simulate executes method as an eth_call from opts.From with the gas and fee
// caps in opts. A revert comes back as the node's error, reason included.
func (b *Bound) Simulate(opts *bind.TransactOpts, method string, args ...any) error {
	input, err := b.abi.Pack(method, args...)
	if err != nil {
		return err
	}
	msg := ethereum.CallMsg{
		From:      opts.From,
		To:        &b.address,
		Gas:       opts.GasLimit,
		GasFeeCap: opts.GasFeeCap,
		GasTipCap: opts.GasTipCap,
		Value:     opts.Value,
		Data:      input,
	}
	_, err = b.caller.CallContract(opts.Context, msg, nil)
	return err
}

func (b *Bound) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

type AccessControl struct{ *Bound }

func NewAccessControl(address common.Address, backend bind.ContractBackend) (*AccessControl, error) {
	b, err := newBound(address, AccessControlABI, backend)
	if err != nil {
		return nil, err
	}
	return &AccessControl{b}, nil
}

func (c *AccessControl) AdminRole(ctx context.Context) ([32]byte, error) {
	return c.role(ctx, "ADMIN_ROLE")
}

func (c *AccessControl) UniversityRole(ctx context.Context) ([32]byte, error) {
	return c.role(ctx, "UNIVERSITY_ROLE")
}

func (c *AccessControl) role(ctx context.Context, method string) ([32]byte, error) {
	out, err := c.call(ctx, method)
	if err != nil {
		return [32]byte{}, err
	}
	return *abi.ConvertType(out[0], new([32]byte)).(*[32]byte), nil
}

func (c *AccessControl) HasRole(ctx context.Context, role [32]byte, account common.Address) (bool, error) {
	out, err := c.call(ctx, "hasRole", role, account)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

type Registry struct{ *Bound }

// UniversityInfo is the universities(address) output.
type UniversityInfo struct {
	Name         string
	Country      string
	IsApproved   bool
	IsRegistered bool
}

func NewRegistry(address common.Address, backend bind.ContractBackend) (*Registry, error) {
	b, err := newBound(address, RegistryABI, backend)
	if err != nil {
		return nil, err
	}
	return &Registry{b}, nil
}

func (c *Registry) Universities(ctx context.Context, university common.Address) (UniversityInfo, error) {
	out, err := c.call(ctx, "universities", university)
	if err != nil {
		return UniversityInfo{}, err
	}
	return UniversityInfo{
		Name:         *abi.ConvertType(out[0], new(string)).(*string),
		Country:      *abi.ConvertType(out[1], new(string)).(*string),
		IsApproved:   *abi.ConvertType(out[2], new(bool)).(*bool),
		IsRegistered: *abi.ConvertType(out[3], new(bool)).(*bool),
	}, nil
}

func (c *Registry) GetAllUniversities(ctx context.Context) ([]common.Address, error) {
	out, err := c.call(ctx, "getAllUniversities")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

func (c *Registry) IsUniversityApproved(ctx context.Context, university common.Address) (bool, error) {
	out, err := c.call(ctx, "isUniversityApproved", university)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

type Diploma struct{ *Bound }

// DiplomaTuple is the struct returned by verifyDiploma. Field names follow
// the ABI component names so the decoder can map them.
type DiplomaTuple struct {
	University  common.Address
	Student     common.Address
	IssueDate   uint64
	IsMinted    bool
	DiplomaHash string
}

func NewDiploma(address common.Address, backend bind.ContractBackend) (*Diploma, error) {
	b, err := newBound(address, DiplomaABI, backend)
	if err != nil {
		return nil, err
	}
	return &Diploma{b}, nil
}

func (c *Diploma) VerifyDiploma(ctx context.Context, diplomaID [32]byte) (bool, DiplomaTuple, error) {
	out, err := c.call(ctx, "verifyDiploma", diplomaID)
	if err != nil {
		return false, DiplomaTuple{}, err
	}
	valid := *abi.ConvertType(out[0], new(bool)).(*bool)
	tuple := *abi.ConvertType(out[1], new(DiplomaTuple)).(*DiplomaTuple)
	return valid, tuple, nil
}

func (c *Diploma) GetStudentDiplomas(ctx context.Context, student common.Address) ([][32]byte, error) {
	out, err := c.call(ctx, "getStudentDiplomas", student)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([][32]byte)).(*[][32]byte), nil
}

func (c *Diploma) IsDiplomaMinted(ctx context.Context, diplomaID [32]byte) (bool, error) {
	out, err := c.call(ctx, "isDiplomaMinted", diplomaID)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

type Token struct{ *Bound }

func NewToken(address common.Address, backend bind.ContractBackend) (*Token, error) {
	b, err := newBound(address, TokenABI, backend)
	if err != nil {
		return nil, err
	}
	return &Token{b}, nil
}

func (c *Token) Name(ctx context.Context) (string, error) {
	return c.str(ctx, "name")
}

func (c *Token) Symbol(ctx context.Context) (string, error) {
	return c.str(ctx, "symbol")
}

func (c *Token) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	return c.str(ctx, "tokenURI", tokenID)
}

func (c *Token) str(ctx context.Context, method string, args ...any) (string, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (c *Token) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	out, err := c.call(ctx, "ownerOf", tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *Token) GetDiplomaIDForToken(ctx context.Context, tokenID *big.Int) ([32]byte, error) {
	out, err := c.call(ctx, "getDiplomaIdForToken", tokenID)
	if err != nil {
		return [32]byte{}, err
	}
	return *abi.ConvertType(out[0], new([32]byte)).(*[32]byte), nil
}

func (c *Token) GetTokenIDForDiploma(ctx context.Context, diplomaID [32]byte) (*big.Int, error) {
	out, err := c.call(ctx, "getTokenIdForDiploma", diplomaID)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
