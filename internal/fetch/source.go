// Package fetch acquires on-chain bytecode for an address through a tiered
// fallback: the deployment transaction's input, the explorer's recorded
// runtime bytecode, and finally the node's current account code.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/pendergraft/veriforge/internal/explorer"
	"github.com/pendergraft/veriforge/internal/observability/metrics"
)

// ErrUnavailable is returned when every tier has been exhausted.
var ErrUnavailable = errors.New("bytecode unavailable from all sources")

// Tag identifies which kind of bytecode a fetch produced.
type Tag string

const (
	// TagCreation marks creation bytecode (deployment transaction input).
	TagCreation Tag = "creation"
	// TagRuntime marks runtime (deployed) bytecode.
	TagRuntime Tag = "runtime"
)

// Code is a fetched on-chain payload with its provenance tag.
type Code struct {
	Hex string
	Tag Tag
}

// ExplorerAPI is the subset of the explorer client used by the source.
type ExplorerAPI interface {
	GetAddress(ctx context.Context, address string) (*explorer.Address, error)
	GetTransaction(ctx context.Context, hash string) (*explorer.Transaction, error)
	GetSmartContract(ctx context.Context, address string) (*explorer.SmartContract, error)
}

// NodeReader reads account code from a chain node. *ethclient.Client
// satisfies it.
type NodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// TieredSource implements the three-tier fetch. Transient failures in one
// tier are swallowed and the next tier attempted; only exhausting all tiers
// yields ErrUnavailable.
type TieredSource struct {
	explorer ExplorerAPI
	node     NodeReader
	logger   *slog.Logger
}

// NewTieredSource creates a source. node may be nil, in which case tier 3 is
// skipped.
func NewTieredSource(api ExplorerAPI, node NodeReader, logger *slog.Logger) *TieredSource {
	return &TieredSource{explorer: api, node: node, logger: logger}
}

// Fetch returns the on-chain bytecode for an address, tagged with its
// provenance.
func (s *TieredSource) Fetch(ctx context.Context, address string) (*Code, error) {
	addr := strings.ToLower(address)

	// Tier 1: the creation transaction's raw input, but only for direct
	// deployments. Factory deployments embed salts and dispatch logic in the
	// input, so those fall through to runtime bytecode.
	if code := s.fetchCreation(ctx, addr); code != nil {
		return code, nil
	}

	// Tier 2: the explorer's recorded runtime bytecode.
	if code := s.fetchExplorerRuntime(ctx, addr); code != nil {
		return code, nil
	}

	// Tier 3: eth_getCode against the node.
	if code := s.fetchNodeRuntime(ctx, addr); code != nil {
		return code, nil
	}

	return nil, ErrUnavailable
}

func (s *TieredSource) fetchCreation(ctx context.Context, addr string) *Code {
	metrics.RecordFetchAttempt("creation")
	rec, err := s.explorer.GetAddress(ctx, addr)
	if err != nil {
		s.logger.Debug("creation tier unavailable", "address", addr, "error", err)
		return nil
	}
	if rec.CreationTransactionHash == "" {
		return nil
	}

	tx, err := s.explorer.GetTransaction(ctx, rec.CreationTransactionHash)
	if err != nil {
		s.logger.Debug("creation tx lookup failed", "address", addr, "error", err)
		return nil
	}
	if tx.IsFactoryDeployment() {
		s.logger.Debug("factory deployment, using runtime bytecode",
			"address", addr, "factory", tx.To.Hash)
		return nil
	}
	if tx.RawInput == "" {
		return nil
	}
	return &Code{Hex: tx.RawInput, Tag: TagCreation}
}

func (s *TieredSource) fetchExplorerRuntime(ctx context.Context, addr string) *Code {
	metrics.RecordFetchAttempt("explorer_runtime")
	sc, err := s.explorer.GetSmartContract(ctx, addr)
	if err != nil {
		s.logger.Debug("explorer runtime tier unavailable", "address", addr, "error", err)
		return nil
	}
	if sc.DeployedBytecode == "" {
		return nil
	}
	return &Code{Hex: sc.DeployedBytecode, Tag: TagRuntime}
}

func (s *TieredSource) fetchNodeRuntime(ctx context.Context, addr string) *Code {
	if s.node == nil {
		return nil
	}
	metrics.RecordFetchAttempt("node")
	code, err := s.node.CodeAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		s.logger.Debug("node tier unavailable", "address", addr, "error", err)
		return nil
	}
	if len(code) == 0 {
		return nil
	}
	return &Code{Hex: hexutil.Encode(code), Tag: TagRuntime}
}
