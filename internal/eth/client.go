// Package eth implements chain.Port on top of a go-ethereum RPC client and
// the bound POD contracts.
package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"podcred/internal/chain"
	"podcred/internal/config"
	"podcred/internal/eth/contracts"
)

// Client is the go-ethereum backed chain.Port. Contracts without a configured
// address are nil and every call on them returns chain.ErrNotConfigured.
type Client struct {
	logger  *zap.Logger
	backend Backend

	access   *contracts.AccessControl
	registry *contracts.Registry
	diploma  *contracts.Diploma
	token    *contracts.Token

	// sendMu serialises submissions so pending-nonce lookups do not race.
	sendMu sync.Mutex
	opts   *bind.TransactOpts
}

var _ chain.Port = (*Client)(nil)

var ErrWrongChain = errors.New("eth: connected to the wrong chain")

// Backend is the node surface the client needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// NewClient binds the configured contracts on backend. opts may be nil, in
// which case writes return chain.ErrNoSigner.
func NewClient(logger *zap.Logger, backend Backend, addrs config.Contracts, opts *bind.TransactOpts) (*Client, error) {
	c := &Client{logger: logger, backend: backend, opts: opts}
	if err := c.bindContracts(addrs); err != nil {
		return nil, err
	}
	return c, nil
}

func Dial(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Chain.RPCURL, err)
	}

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if chainID.Int64() != cfg.Chain.ChainID {
		rpc.Close()
		return nil, fmt.Errorf("%w: node reports chain %s, configured %d", ErrWrongChain, chainID, cfg.Chain.ChainID)
	}

	var opts *bind.TransactOpts
	if cfg.Signer.Configured() {
		opts, err = loadSigner(cfg.Signer, big.NewInt(cfg.Chain.ChainID))
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("load signer: %w", err)
		}
		logger.Info("Signer loaded", zap.String("address", opts.From.Hex()))
	} else {
		logger.Warn("No signer configured, writes are disabled")
	}

	c, err := NewClient(logger, rpc, cfg.Contracts, opts)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Close() {
	if rpc, ok := c.backend.(*ethclient.Client); ok {
		rpc.Close()
	}
}

func (c *Client) bindContracts(addrs config.Contracts) error {
	parse := func(name, raw string) (common.Address, bool, error) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			c.logger.Warn("Contract address not configured", zap.String("contract", name))
			return common.Address{}, false, nil
		}
		if !common.IsHexAddress(raw) {
			return common.Address{}, false, fmt.Errorf("invalid %s contract address %q", name, raw)
		}
		return common.HexToAddress(raw), true, nil
	}

	if addr, ok, err := parse("access_control", addrs.AccessControl); err != nil {
		return err
	} else if ok {
		if c.access, err = contracts.NewAccessControl(addr, c.backend); err != nil {
			return err
		}
	}
	if addr, ok, err := parse("registry", addrs.Registry); err != nil {
		return err
	} else if ok {
		if c.registry, err = contracts.NewRegistry(addr, c.backend); err != nil {
			return err
		}
	}
	if addr, ok, err := parse("diploma", addrs.Diploma); err != nil {
		return err
	} else if ok {
		if c.diploma, err = contracts.NewDiploma(addr, c.backend); err != nil {
			return err
		}
	}
	if addr, ok, err := parse("token", addrs.Token); err != nil {
		return err
	} else if ok {
		if c.token, err = contracts.NewToken(addr, c.backend); err != nil {
			return err
		}
	}
	return nil
}

func loadSigner(cfg config.Signer, chainID *big.Int) (*bind.TransactOpts, error) {
	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
		if err != nil {
			return nil, err
		}
		return bind.NewKeyedTransactorWithChainID(key, chainID)
	}

	f, err := os.Open(cfg.KeystorePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bind.NewTransactorWithChainID(f, cfg.KeystorePassphrase, chainID)
}

func (c *Client) AdminRole(ctx context.Context) (chain.Role, error) {
	if c.access == nil {
		return chain.Role{}, chain.ErrNotConfigured
	}
	role, err := c.access.AdminRole(ctx)
	return chain.Role(role), err
}

func (c *Client) UniversityRole(ctx context.Context) (chain.Role, error) {
	if c.access == nil {
		return chain.Role{}, chain.ErrNotConfigured
	}
	role, err := c.access.UniversityRole(ctx)
	return chain.Role(role), err
}

func (c *Client) HasRole(ctx context.Context, role chain.Role, account common.Address) (bool, error) {
	if c.access == nil {
		return false, chain.ErrNotConfigured
	}
	return c.access.HasRole(ctx, role, account)
}

func (c *Client) University(ctx context.Context, addr common.Address) (chain.University, error) {
	if c.registry == nil {
		return chain.University{}, chain.ErrNotConfigured
	}
	info, err := c.registry.Universities(ctx, addr)
	if err != nil {
		return chain.University{}, err
	}
	return chain.University{
		Address:      addr,
		Name:         info.Name,
		Country:      info.Country,
		IsApproved:   info.IsApproved,
		IsRegistered: info.IsRegistered,
	}, nil
}

func (c *Client) AllUniversities(ctx context.Context) ([]common.Address, error) {
	if c.registry == nil {
		return nil, chain.ErrNotConfigured
	}
	return c.registry.GetAllUniversities(ctx)
}

func (c *Client) IsUniversityApproved(ctx context.Context, addr common.Address) (bool, error) {
	if c.registry == nil {
		return false, chain.ErrNotConfigured
	}
	return c.registry.IsUniversityApproved(ctx, addr)
}

func (c *Client) VerifyDiploma(ctx context.Context, id common.Hash) (bool, chain.DiplomaRecord, error) {
	if c.diploma == nil {
		return false, chain.DiplomaRecord{}, chain.ErrNotConfigured
	}
	valid, d, err := c.diploma.VerifyDiploma(ctx, id)
	if err != nil {
		return false, chain.DiplomaRecord{}, err
	}
	return valid, chain.DiplomaRecord{
		ID:          id,
		University:  d.University,
		Student:     d.Student,
		IssueDate:   d.IssueDate,
		IsMinted:    d.IsMinted,
		DiplomaHash: d.DiplomaHash,
	}, nil
}

func (c *Client) StudentDiplomas(ctx context.Context, student common.Address) ([]common.Hash, error) {
	if c.diploma == nil {
		return nil, chain.ErrNotConfigured
	}
	ids, err := c.diploma.GetStudentDiplomas(ctx, student)
	if err != nil {
		return nil, err
	}
	out := make([]common.Hash, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out, nil
}

func (c *Client) IsDiplomaMinted(ctx context.Context, id common.Hash) (bool, error) {
	if c.diploma == nil {
		return false, chain.ErrNotConfigured
	}
	return c.diploma.IsDiplomaMinted(ctx, id)
}

func (c *Client) TokenForDiploma(ctx context.Context, id common.Hash) (*big.Int, error) {
	if c.token == nil {
		return nil, chain.ErrNotConfigured
	}
	return c.token.GetTokenIDForDiploma(ctx, id)
}

func (c *Client) DiplomaForToken(ctx context.Context, tokenID *big.Int) (common.Hash, error) {
	if c.token == nil {
		return common.Hash{}, chain.ErrNotConfigured
	}
	id, err := c.token.GetDiplomaIDForToken(ctx, tokenID)
	return common.Hash(id), err
}

func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	if c.token == nil {
		return common.Address{}, chain.ErrNotConfigured
	}
	return c.token.OwnerOf(ctx, tokenID)
}

func (c *Client) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	if c.token == nil {
		return "", chain.ErrNotConfigured
	}
	return c.token.TokenURI(ctx, tokenID)
}

func (c *Client) TokenMeta(ctx context.Context) (string, string, error) {
	if c.token == nil {
		return "", "", chain.ErrNotConfigured
	}
	name, err := c.token.Name(ctx)
	if err != nil {
		return "", "", err
	}
	symbol, err := c.token.Symbol(ctx)
	if err != nil {
		return "", "", err
	}
	return name, symbol, nil
}

func (c *Client) Signer() (common.Address, bool) {
	if c.opts == nil {
		return common.Address{}, false
	}
	return c.opts.From, true
}

func (c *Client) Send(ctx context.Context, call chain.Call, gas chain.GasConfig) (common.Hash, error) {
	if c.opts == nil {
		return common.Hash{}, chain.ErrNoSigner
	}

	target, err := c.bound(call.Contract)
	if err != nil {
		return common.Hash{}, err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	opts := *c.opts
	opts.Context = ctx
	opts.GasLimit = gas.GasLimit
	opts.GasFeeCap = gas.MaxFeePerGas
	opts.GasTipCap = gas.MaxPriorityFeePerGas

	// An explicit GasLimit skips estimation, so reverts would otherwise only
	// show up in the receipt.
	if err := target.Simulate(&opts, call.Method, call.Args...); err != nil {
		c.logger.Debug("Simulation reverted",
			zap.String("method", call.Method),
			zap.String("gas", gas.Label),
			zap.Error(err),
		)
		return common.Hash{}, err
	}

	tx, err := target.Transact(&opts, call.Method, call.Args...)
	if err != nil {
		return common.Hash{}, err
	}

	c.logger.Debug("Transaction submitted",
		zap.String("method", call.Method),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("gas", gas.Label),
		zap.Uint64("gas_limit", gas.GasLimit),
	)
	return tx.Hash(), nil
}

func (c *Client) bound(kind chain.ContractKind) (*contracts.Bound, error) {
	switch kind {
	case chain.AccessControl:
		if c.access != nil {
			return c.access.Bound, nil
		}
	case chain.Registry:
		if c.registry != nil {
			return c.registry.Bound, nil
		}
	case chain.Diploma:
		if c.diploma != nil {
			return c.diploma.Bound, nil
		}
	case chain.Token:
		if c.token != nil {
			return c.token.Bound, nil
		}
	default:
		return nil, fmt.Errorf("unknown contract %q", kind)
	}
	return nil, fmt.Errorf("%s: %w", kind, chain.ErrNotConfigured)
}

func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, chain.ErrReceiptNotFound
		}
		return nil, err
	}

	out := &chain.Receipt{
		TxHash:  receipt.TxHash,
		GasUsed: receipt.GasUsed,
		Success: receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out, nil
}
