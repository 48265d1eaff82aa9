package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/veriforge/internal/explorer"
)

type fakeExplorer struct {
	address    *explorer.Address
	addressErr error

	tx    *explorer.Transaction
	txErr error

	contract    *explorer.SmartContract
	contractErr error

	addressCalls  int
	contractCalls int
}

func (f *fakeExplorer) GetAddress(ctx context.Context, address string) (*explorer.Address, error) {
	f.addressCalls++
	return f.address, f.addressErr
}

func (f *fakeExplorer) GetTransaction(ctx context.Context, hash string) (*explorer.Transaction, error) {
	return f.tx, f.txErr
}

func (f *fakeExplorer) GetSmartContract(ctx context.Context, address string) (*explorer.SmartContract, error) {
	f.contractCalls++
	return f.contract, f.contractErr
}

type fakeNode struct {
	code  []byte
	err   error
	calls int
}

func (f *fakeNode) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	return f.code, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const addr = "0x1234567890123456789012345678901234567890"

func TestFetch_Tier1DirectDeployment(t *testing.T) {
	api := &fakeExplorer{
		address: &explorer.Address{CreationTransactionHash: "0xcreate"},
		tx:      &explorer.Transaction{RawInput: "0x6001"},
	}
	node := &fakeNode{}
	src := NewTieredSource(api, node, discard())

	code, err := src.Fetch(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, TagCreation, code.Tag)
	assert.Equal(t, "0x6001", code.Hex)
	assert.Zero(t, api.contractCalls)
	assert.Zero(t, node.calls)
}

func TestFetch_FactoryDeploymentFallsToTier2(t *testing.T) {
	api := &fakeExplorer{
		address:  &explorer.Address{CreationTransactionHash: "0xcreate"},
		tx:       &explorer.Transaction{To: &explorer.TransactionParty{Hash: "0xfactory"}, RawInput: "0x6001"},
		contract: &explorer.SmartContract{DeployedBytecode: "0x6002"},
	}
	src := NewTieredSource(api, &fakeNode{}, discard())

	code, err := src.Fetch(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, TagRuntime, code.Tag)
	assert.Equal(t, "0x6002", code.Hex)
}

func TestFetch_Tier1ErrorFallsToTier2(t *testing.T) {
	api := &fakeExplorer{
		addressErr: errors.New("network error"),
		contract:   &explorer.SmartContract{DeployedBytecode: "0x6002"},
	}
	src := NewTieredSource(api, &fakeNode{}, discard())

	code, err := src.Fetch(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, TagRuntime, code.Tag)
}

func TestFetch_Tier2ErrorFallsToTier3(t *testing.T) {
	api := &fakeExplorer{
		addressErr:  errors.New("down"),
		contractErr: explorer.ErrNotFound,
	}
	node := &fakeNode{code: []byte{0x60, 0x03}}
	src := NewTieredSource(api, node, discard())

	code, err := src.Fetch(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, TagRuntime, code.Tag)
	assert.Equal(t, "0x6003", code.Hex)
	assert.Equal(t, 1, node.calls)
}

func TestFetch_AllTiersExhausted(t *testing.T) {
	api := &fakeExplorer{
		addressErr:  errors.New("down"),
		contractErr: errors.New("down"),
	}
	node := &fakeNode{err: errors.New("down")}
	src := NewTieredSource(api, node, discard())

	_, err := src.Fetch(context.Background(), addr)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestFetch_EmptyNodeCodeIsUnavailable(t *testing.T) {
	api := &fakeExplorer{
		address:  &explorer.Address{},
		contract: &explorer.SmartContract{},
	}
	node := &fakeNode{code: nil}
	src := NewTieredSource(api, node, discard())

	_, err := src.Fetch(context.Background(), addr)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestFetch_NilNodeSkipsTier3(t *testing.T) {
	api := &fakeExplorer{
		addressErr:  errors.New("down"),
		contractErr: errors.New("down"),
	}
	src := NewTieredSource(api, nil, discard())

	_, err := src.Fetch(context.Background(), addr)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
