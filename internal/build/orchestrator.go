// Package build produces Foundry compilation artifacts for a pinned build
// target. Targets sharing a repository, revision, and compiler settings are
// built once from one checkout; the orchestrator prefers the locally pinned
// checkout when its revision already matches and falls back to an ephemeral
// shallow clone when it does not, or when the pinned build fails.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pendergraft/veriforge/internal/config"
	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/observability/metrics"
	"github.com/pendergraft/veriforge/internal/repos"
)

// Checkout is a built (or partially built) working tree. Ephemeral checkouts
// are removed by Remove; persistent ones are left untouched.
type Checkout struct {
	dir       string
	ephemeral bool
}

func (c *Checkout) Dir() string { return c.dir }

func (c *Checkout) Ephemeral() bool { return c.ephemeral }

// Remove deletes an ephemeral checkout's working tree. Persistent checkouts
// are never removed.
func (c *Checkout) Remove() error {
	if !c.ephemeral {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// Orchestrator builds checkouts for build targets.
type Orchestrator struct {
	registry *repos.Registry
	runner   Runner
	cfg      config.BuildConfig
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per persistent checkout path
}

// New creates an orchestrator.
func New(registry *repos.Registry, runner Runner, cfg config.BuildConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Build compiles the target's checkout and returns it. The locally pinned
// checkout is used when its revision matches the target; if its build fails
// for any reason, a fresh ephemeral clone is attempted instead. An ephemeral
// build failure still returns the checkout: partial artifacts may be present,
// and the caller owns cleanup via Checkout.Remove.
func (o *Orchestrator) Build(ctx context.Context, target *contracts.Target) (*Checkout, error) {
	if repo, ok := o.registry.ByName(filepath.Base(target.Repo)); ok {
		head, err := o.registry.HeadCommit(ctx, repo)
		if err == nil && head == target.Commit {
			checkout, err := o.buildPersistent(ctx, repo.Path, target)
			if err == nil {
				return checkout, nil
			}
			o.logger.Warn("pinned checkout build failed, cloning fresh",
				"repo", target.Repo, "dir", repo.Path, "error", err)
		}
	}
	return o.buildEphemeral(ctx, target)
}

// RebuildFile recompiles a single source file in an already-built checkout.
// Used when the full build skipped a contract the artifact scan needs.
func (o *Orchestrator) RebuildFile(ctx context.Context, c *Checkout, filePath string) error {
	o.logger.Debug("rebuilding single file", "dir", c.Dir(), "file", filePath)
	return o.runner.Run(ctx, c.Dir(), "forge", "build", "--force", filePath)
}

// buildPersistent builds in the locally pinned checkout. Its foundry.toml is
// byte-restored afterwards so the working tree stays clean, whether or not
// the build succeeded. Any failure here is grounds for an ephemeral retry,
// so no checkout is returned with an error.
func (o *Orchestrator) buildPersistent(ctx context.Context, dir string, target *contracts.Target) (*Checkout, error) {
	lock := o.checkoutLock(dir)
	lock.Lock()
	defer lock.Unlock()

	metrics.RecordBuild("persistent")
	o.logger.Info("building in pinned checkout", "repo", target.Repo, "dir", dir)

	configPath := filepath.Join(dir, FoundryConfig)
	original, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s in %s: %w", FoundryConfig, dir, err)
	}
	defer func() {
		if err := os.WriteFile(configPath, original, 0o644); err != nil {
			o.logger.Error("restoring build config failed", "path", configPath, "error", err)
		}
	}()

	if err := PatchFoundryConfig(configPath, target.Settings); err != nil {
		return nil, err
	}
	if err := o.runner.Run(ctx, dir, "forge", "build", "--force"); err != nil {
		return nil, fmt.Errorf("forge build in %s: %w", dir, err)
	}
	return &Checkout{dir: dir}, nil
}

// buildEphemeral shallow-clones the target revision into a temporary
// directory and builds there.
func (o *Orchestrator) buildEphemeral(ctx context.Context, target *contracts.Target) (*Checkout, error) {
	dir, err := os.MkdirTemp("", "veriforge-build-*")
	if err != nil {
		return nil, fmt.Errorf("creating build directory: %w", err)
	}
	checkout := &Checkout{dir: dir, ephemeral: true}

	metrics.RecordBuild("ephemeral")
	remote := o.cfg.CloneBase + "/" + target.Repo
	o.logger.Info("building in ephemeral clone",
		"repo", target.Repo, "commit", target.Commit, "dir", dir)

	steps := [][]string{
		{"git", "init", "--quiet"},
		{"git", "remote", "add", "origin", remote},
		{"git", "fetch", "--quiet", "--depth", "1", "origin", target.Commit},
		{"git", "checkout", "--quiet", "FETCH_HEAD"},
		{"git", "submodule", "update", "--init", "--recursive", "--quiet"},
	}
	for _, step := range steps {
		if err := o.runner.Run(ctx, dir, step[0], step[1:]...); err != nil {
			checkout.Remove()
			return nil, err
		}
	}

	configPath := filepath.Join(dir, FoundryConfig)
	if _, err := os.Stat(configPath); err != nil {
		checkout.Remove()
		return nil, fmt.Errorf("%s: no %s, not a buildable checkout", target.Repo, FoundryConfig)
	}
	if err := PatchFoundryConfig(configPath, target.Settings); err != nil {
		checkout.Remove()
		return nil, err
	}
	if err := o.runner.Run(ctx, dir, "forge", "build", "--force"); err != nil {
		return checkout, fmt.Errorf("forge build of %s@%s: %w", target.Repo, target.Commit, err)
	}
	return checkout, nil
}

func (o *Orchestrator) checkoutLock(dir string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[dir]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[dir] = lock
	}
	return lock
}
