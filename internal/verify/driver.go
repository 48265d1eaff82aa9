// Package verify orchestrates a verification run: resolve each deployed
// contract to a build target, build each distinct target group once, fetch
// the on-chain bytecode, and compare it against the compiled artifact.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pendergraft/veriforge/internal/artifacts"
	"github.com/pendergraft/veriforge/internal/bytecode"
	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/fetch"
	"github.com/pendergraft/veriforge/internal/report"
)

// Resolver maps an identity to its build target.
type Resolver interface {
	Resolve(ctx context.Context, ident contracts.Identity) (*contracts.Target, error)
}

// Checkout is a built working tree.
type Checkout interface {
	Dir() string
	Remove() error
}

// Builder produces built checkouts for targets.
type Builder interface {
	// Build may return a non-nil checkout together with an error: the build
	// failed but partial artifacts may exist.
	Build(ctx context.Context, target *contracts.Target) (Checkout, error)
	RebuildFile(ctx context.Context, c Checkout, filePath string) error
}

// Source fetches on-chain bytecode for an address.
type Source interface {
	Fetch(ctx context.Context, address string) (*fetch.Code, error)
}

// Locator finds a compiled artifact in a checkout.
type Locator interface {
	Locate(dir, name string) (*artifacts.Artifact, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(dir, name string) (*artifacts.Artifact, error)

func (f LocatorFunc) Locate(dir, name string) (*artifacts.Artifact, error) { return f(dir, name) }

// Options tune a verification run.
type Options struct {
	// SkipUnmapped records unresolvable contracts as skipped instead of
	// failed.
	SkipUnmapped bool
	// Strict aborts the whole run before building anything when any contract
	// cannot be resolved.
	Strict bool
}

// Driver runs verification.
type Driver struct {
	resolver Resolver
	builder  Builder
	source   Source
	locator  Locator
	logger   *slog.Logger
	opts     Options
}

// New creates a driver.
func New(resolver Resolver, builder Builder, source Source, locator Locator, logger *slog.Logger, opts Options) *Driver {
	return &Driver{
		resolver: resolver,
		builder:  builder,
		source:   source,
		locator:  locator,
		logger:   logger,
		opts:     opts,
	}
}

// member is one contract attached to a build group.
type member struct {
	ident  contracts.Identity
	target *contracts.Target
}

// VerifyAll verifies every identity and returns the run report. The only
// error conditions are strict-mode resolution failures and context
// cancellation; per-contract failures land in the report.
func (d *Driver) VerifyAll(ctx context.Context, idents []contracts.Identity) (*report.Report, error) {
	r := report.New()

	members, unresolved := d.resolveAll(ctx, r, idents)
	if d.opts.Strict && len(unresolved) > 0 {
		return nil, fmt.Errorf("strict mode: no build target for %s", strings.Join(unresolved, ", "))
	}

	// Group members by repo, revision, and settings; one build serves every
	// contract in the group. Insertion order keeps runs reproducible.
	groups := make(map[contracts.GroupKey][]member)
	var order []contracts.GroupKey
	for _, m := range members {
		key := m.target.GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.verifyGroup(ctx, r, key, groups[key])
	}

	r.Finish()
	return r, nil
}

func (d *Driver) resolveAll(ctx context.Context, r *report.Report, idents []contracts.Identity) ([]member, []string) {
	var members []member
	var unresolved []string
	for _, ident := range idents {
		target, err := d.resolver.Resolve(ctx, ident)
		if err != nil {
			unresolved = append(unresolved, ident.Name)
			if errors.Is(err, contracts.ErrNoMapping) && d.opts.SkipUnmapped {
				d.logger.Info("skipping unmapped contract", "name", ident.Name)
				r.Skip(ident.Name)
				continue
			}
			r.Add(report.Outcome{
				Name:      ident.Name,
				Address:   ident.Address,
				ErrorKind: report.KindUnresolved,
				Error:     err.Error(),
			})
			continue
		}
		members = append(members, member{ident: ident, target: target})
	}
	return members, unresolved
}

// verifyGroup builds the group's checkout once, then verifies each member
// against it. A failed build still lets members try their artifacts: partial
// compilation output is common when one contract in a tree does not compile.
func (d *Driver) verifyGroup(ctx context.Context, r *report.Report, key contracts.GroupKey, members []member) {
	d.logger.Info("building group", "group", key.String(), "contracts", len(members))

	checkout, buildErr := d.builder.Build(ctx, members[0].target)
	if buildErr != nil {
		d.logger.Warn("build failed", "group", key.String(), "error", buildErr)
	}
	if checkout == nil {
		for _, m := range members {
			r.Add(d.failure(m, report.KindBuildFailure, buildErr))
		}
		return
	}
	defer func() {
		if err := checkout.Remove(); err != nil {
			d.logger.Error("removing checkout failed", "dir", checkout.Dir(), "error", err)
		}
	}()

	for _, m := range members {
		r.Add(d.verifyOne(ctx, checkout, buildErr, m))
	}
}

func (d *Driver) verifyOne(ctx context.Context, checkout Checkout, buildErr error, m member) report.Outcome {
	code, err := d.source.Fetch(ctx, m.ident.Address)
	if err != nil {
		return d.failure(m, report.KindFetchUnavailable, err)
	}

	artifact, err := d.locateWithRetry(ctx, checkout, buildErr, m)
	if err != nil {
		if buildErr != nil {
			return d.failure(m, report.KindBuildFailure, buildErr)
		}
		return d.failure(m, report.KindArtifactNotFound, err)
	}

	compiled := artifact.DeployedBytecode
	if code.Tag == fetch.TagCreation {
		compiled = artifact.Bytecode
	}
	if compiled == "" || compiled == "0x" {
		return d.failure(m, report.KindArtifactNotFound,
			fmt.Errorf("artifact %s has no %s bytecode", artifact.Name, code.Tag))
	}

	result, err := bytecode.CompareHex(code.Hex, compiled)
	if err != nil {
		// a payload that does not decode was never compared
		return d.failure(m, report.KindInvalidBytecode, err)
	}

	outcome := report.Outcome{
		Name:     m.ident.Name,
		Address:  m.ident.Address,
		Verified: result.Match,
		Details:  d.details(m, string(code.Tag), result.Diagnostics),
	}
	if !result.Match {
		outcome.ErrorKind = report.KindMismatch
		outcome.Error = "deployed bytecode does not match compiled bytecode"
		d.logger.Warn("bytecode mismatch", "name", m.ident.Name, "address", m.ident.Address)
	} else {
		d.logger.Info("verified", "name", m.ident.Name, "address", m.ident.Address, "bytecode", code.Tag)
	}
	return outcome
}

// locateWithRetry looks up the member's artifact, retrying once after a
// targeted rebuild of its source file. Full builds skip scripts and tests, so
// contracts only reachable through those trees need the direct pass.
func (d *Driver) locateWithRetry(ctx context.Context, checkout Checkout, buildErr error, m member) (*artifacts.Artifact, error) {
	artifact, err := d.locator.Locate(checkout.Dir(), m.target.ArtifactName)
	if err == nil {
		return artifact, nil
	}
	if !errors.Is(err, artifacts.ErrNotFound) || m.target.FilePath == "" || buildErr != nil {
		return nil, err
	}

	d.logger.Debug("artifact missing, rebuilding source file",
		"name", m.target.ArtifactName, "file", m.target.FilePath)
	if rerr := d.builder.RebuildFile(ctx, checkout, m.target.FilePath); rerr != nil {
		return nil, fmt.Errorf("rebuilding %s: %w", m.target.FilePath, rerr)
	}
	return d.locator.Locate(checkout.Dir(), m.target.ArtifactName)
}

func (d *Driver) failure(m member, kind report.ErrorKind, err error) report.Outcome {
	outcome := report.Outcome{
		Name:      m.ident.Name,
		Address:   m.ident.Address,
		ErrorKind: kind,
	}
	if err != nil {
		outcome.Error = err.Error()
	}
	outcome.Details = d.details(m, "", bytecode.Diagnostics{})
	return outcome
}

func (d *Driver) details(m member, bytecodeType string, diag bytecode.Diagnostics) *report.Details {
	return &report.Details{
		Repo:            m.target.Repo,
		Commit:          m.target.Commit,
		CompilerVersion: m.target.CompilerVersion,
		BytecodeType:    bytecodeType,
		Diagnostics:     diag,
	}
}
