package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pendergraft/veriforge/internal/build"
	"github.com/pendergraft/veriforge/internal/config"
	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/explorer"
	"github.com/pendergraft/veriforge/internal/fetch"
	"github.com/pendergraft/veriforge/internal/repos"
	"github.com/pendergraft/veriforge/internal/verify"
)

func newExplorerClient(cfg *config.Config) *explorer.Client {
	return explorer.New(cfg.Explorer.BaseURL,
		explorer.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Explorer.TimeoutSeconds) * time.Second,
		}),
		explorer.WithRateLimit(cfg.Explorer.RequestsPerSecond, cfg.Explorer.Burst),
	)
}

func newGit(cfg *config.Config) *repos.ExecGit {
	git := repos.NewGit()
	if cfg.Build.GitTimeoutSeconds > 0 {
		git.Timeout = time.Duration(cfg.Build.GitTimeoutSeconds) * time.Second
	}
	return git
}

// newSource wires the tiered bytecode source. The node tier is skipped when
// no RPC URL is configured.
func newSource(cfg *config.Config, logger *slog.Logger) (*fetch.TieredSource, error) {
	var node fetch.NodeReader
	if cfg.Node.RPCURL != "" {
		client, err := ethclient.Dial(cfg.Node.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to node: %w", err)
		}
		node = client
	}
	return fetch.NewTieredSource(newExplorerClient(cfg), node, logger), nil
}

// orchestratorAdapter narrows *build.Orchestrator to the driver's Builder
// interface. The indirection keeps a nil *build.Checkout from leaking into
// the interface as a non-nil value.
type orchestratorAdapter struct {
	o *build.Orchestrator
}

func (a orchestratorAdapter) Build(ctx context.Context, target *contracts.Target) (verify.Checkout, error) {
	c, err := a.o.Build(ctx, target)
	if c == nil {
		return nil, err
	}
	return c, err
}

func (a orchestratorAdapter) RebuildFile(ctx context.Context, c verify.Checkout, filePath string) error {
	bc, ok := c.(*build.Checkout)
	if !ok {
		return fmt.Errorf("unexpected checkout type %T", c)
	}
	return a.o.RebuildFile(ctx, bc, filePath)
}
