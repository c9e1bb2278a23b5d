package eth

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"podcred/internal/chain"
	"podcred/internal/config"
	"podcred/internal/issuance"
)

var (
	diplomaAddr = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	student     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

// stubBackend answers eth_call with scripted errors and records broadcasts.
type stubBackend struct {
	mu        sync.Mutex
	callErrs  []error
	calls     []ethereum.CallMsg
	estimates int
	sent      []*types.Transaction
	receipts  map[common.Hash]*types.Receipt
}

func (b *stubBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *stubBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	if len(b.callErrs) == 0 {
		return nil, nil
	}
	err := b.callErrs[0]
	b.callErrs = b.callErrs[1:]
	return nil, err
}

func (b *stubBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(1)}, nil
}

func (b *stubBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *stubBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *stubBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *stubBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *stubBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.estimates++
	return 0, errors.New("estimate not expected")
}

func (b *stubBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *stubBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *stubBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (b *stubBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[txHash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func newTestClient(t *testing.T, backend *stubBackend) *Client {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(421614))
	require.NoError(t, err)

	c, err := NewClient(zap.NewNop(), backend, config.Contracts{Diploma: diplomaAddr.Hex()}, opts)
	require.NoError(t, err)
	return c
}

func TestSendAppliesGasConfig(t *testing.T) {
	backend := &stubBackend{}
	c := newTestClient(t, backend)
	gas := issuance.PrimaryGas()

	hash, err := c.Send(context.Background(), chain.GenerateDiploma(student, "diploma-1"), gas)
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	require.Equal(t, tx.Hash(), hash)
	require.Equal(t, diplomaAddr, *tx.To())
	require.Equal(t, gas.GasLimit, tx.Gas())
	require.Zero(t, gas.MaxFeePerGas.Cmp(tx.GasFeeCap()))
	require.Zero(t, gas.MaxPriorityFeePerGas.Cmp(tx.GasTipCap()))

	require.Len(t, backend.calls, 1)
	sim := backend.calls[0]
	signer, _ := c.Signer()
	require.Equal(t, signer, sim.From)
	require.Equal(t, gas.GasLimit, sim.Gas)
	require.Equal(t, tx.Data(), sim.Data)
	require.Zero(t, backend.estimates)
}

func TestSendSurfacesRevertWithoutBroadcast(t *testing.T) {
	backend := &stubBackend{callErrs: []error{errors.New("execution reverted: Diploma already exists")}}
	c := newTestClient(t, backend)

	_, err := c.Send(context.Background(), chain.GenerateDiploma(student, "diploma-1"), issuance.PrimaryGas())
	require.ErrorContains(t, err, "execution reverted: Diploma already exists")
	require.Empty(t, backend.sent)
}

func TestIssuerClassifiesRevertedSimulation(t *testing.T) {
	backend := &stubBackend{callErrs: []error{errors.New("execution reverted: Diploma already exists")}}
	c := newTestClient(t, backend)

	_, err := issuance.NewIssuer(zap.NewNop(), c).Issue(context.Background(), student.Hex(), "diploma-1")

	var submitErr *issuance.SubmitError
	require.ErrorAs(t, err, &submitErr)
	require.Equal(t, issuance.CategoryDuplicate, submitErr.Category)
	require.Equal(t, "Diploma already exists", submitErr.Reason)
	require.Equal(t, 1, submitErr.Attempts)
	require.Len(t, backend.calls, 1)
	require.Empty(t, backend.sent)
}

func TestIssuerRetriesGenericRevertWithFallbackGas(t *testing.T) {
	backend := &stubBackend{callErrs: []error{errors.New("execution reverted")}}
	c := newTestClient(t, backend)

	sub, err := issuance.NewIssuer(zap.NewNop(), c).Issue(context.Background(), student.Hex(), "diploma-1")
	require.NoError(t, err)
	require.Equal(t, 2, sub.Attempts)

	require.Len(t, backend.calls, 2)
	require.Equal(t, issuance.PrimaryGas().GasLimit, backend.calls[0].Gas)
	require.Equal(t, issuance.FallbackGas().GasLimit, backend.calls[1].Gas)

	require.Len(t, backend.sent, 1)
	require.Equal(t, issuance.FallbackGas().GasLimit, backend.sent[0].Gas())
	require.Equal(t, backend.sent[0].Hash(), sub.TxHash)
}

func TestReceipt(t *testing.T) {
	mined := common.HexToHash("0x01")
	backend := &stubBackend{receipts: map[common.Hash]*types.Receipt{
		mined: {TxHash: mined, Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7), GasUsed: 21000},
	}}
	c := newTestClient(t, backend)

	_, err := c.Receipt(context.Background(), common.HexToHash("0x02"))
	require.ErrorIs(t, err, chain.ErrReceiptNotFound)

	r, err := c.Receipt(context.Background(), mined)
	require.NoError(t, err)
	require.Equal(t, chain.Receipt{TxHash: mined, BlockNumber: 7, GasUsed: 21000, Success: true}, *r)
}

func TestUnconfiguredContracts(t *testing.T) {
	backend := &stubBackend{}
	c := newTestClient(t, backend)
	ctx := context.Background()

	_, err := c.AdminRole(ctx)
	require.ErrorIs(t, err, chain.ErrNotConfigured)
	_, err = c.University(ctx, student)
	require.ErrorIs(t, err, chain.ErrNotConfigured)
	_, err = c.TokenURI(ctx, big.NewInt(1))
	require.ErrorIs(t, err, chain.ErrNotConfigured)

	_, err = c.Send(ctx, chain.RegisterUniversity("Delft", "NL"), issuance.PrimaryGas())
	require.ErrorIs(t, err, chain.ErrNotConfigured)
	require.Empty(t, backend.calls)
	require.Empty(t, backend.sent)
}

func TestSendWithoutSigner(t *testing.T) {
	c, err := NewClient(zap.NewNop(), &stubBackend{}, config.Contracts{Diploma: diplomaAddr.Hex()}, nil)
	require.NoError(t, err)

	_, ok := c.Signer()
	require.False(t, ok)

	_, err = c.Send(context.Background(), chain.GenerateDiploma(student, "diploma-1"), issuance.PrimaryGas())
	require.ErrorIs(t, err, chain.ErrNoSigner)
}

func TestNewClientRejectsBadAddress(t *testing.T) {
	_, err := NewClient(zap.NewNop(), &stubBackend{}, config.Contracts{Registry: "0x1234"}, nil)
	require.Error(t, err)
}
