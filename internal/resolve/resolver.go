// Package resolve maps a deployed contract identity to a build target:
// repository, pinned revision, artifact name, and compiler settings.
//
// Resolution tiers, first match wins:
//  1. the static override table (contracts that cannot be discovered
//     automatically, e.g. vendored third-party code),
//  2. path-guided lookup (the verifier-reported file path names a top-level
//     dependency checkout),
//  3. the periphery checkout's own nested dependencies (the outer checkout
//     becomes the target, since the contract compiles in its build context),
//  4. a source-tree search across every known checkout.
//
// Checkouts are always scanned in lexicographic repository-id order, so a
// same-named source file in two checkouts resolves deterministically.
package resolve

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pendergraft/veriforge/internal/config"
	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/repos"
)

// sourceDirs are the conventional source roots searched by tier 4.
var sourceDirs = []string{"src", "contracts"}

const sourceExt = ".sol"

// Hint carries the verifier-reported facts about a contract that guide
// resolution. All fields are optional.
type Hint struct {
	ArtifactName string
	FilePath     string
	VerifiedAt   string
	Settings     contracts.Settings
}

// Resolver resolves identities to build targets against the known
// repositories.
type Resolver struct {
	registry  *repos.Registry
	git       repos.Git
	overrides map[string]config.Override
	periphery string // repository id of the periphery checkout, may be ""
	depDir    string // dependency directory prefix, e.g. "lib"
	logger    *slog.Logger
}

// New creates a resolver. The override table is treated as immutable.
func New(registry *repos.Registry, git repos.Git, project *config.Project, depDir string, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry:  registry,
		git:       git,
		overrides: project.Overrides,
		periphery: project.Periphery,
		depDir:    depDir,
		logger:    logger,
	}
}

// Resolve returns the build target for an identity, or contracts.ErrNoMapping
// when no tier matches. A failed resolution is non-fatal to the overall run.
func (r *Resolver) Resolve(ctx context.Context, ident contracts.Identity, hint Hint) (*contracts.Target, error) {
	artifact := hint.ArtifactName
	if artifact == "" {
		artifact = ident.Name
	}

	if target, err := r.fromOverride(ctx, ident); err != nil || target != nil {
		return target, err
	}

	repoID, commit, err := r.fromFilePath(ctx, hint.FilePath)
	if err != nil {
		return nil, err
	}
	if repoID == "" {
		repoID, commit, err = r.fromSourceTree(ctx, artifact)
		if err != nil {
			return nil, err
		}
	}
	if repoID == "" {
		return nil, contracts.ErrNoMapping
	}

	return &contracts.Target{
		Address:      ident.Address,
		Repo:         repoID,
		Commit:       commit,
		ArtifactName: artifact,
		FilePath:     hint.FilePath,
		VerifiedAt:   hint.VerifiedAt,
		Settings:     hint.Settings,
	}, nil
}

// fromOverride applies tier 1. Overrides without a pinned commit take the
// current revision of their declared build context.
func (r *Resolver) fromOverride(ctx context.Context, ident contracts.Identity) (*contracts.Target, error) {
	ov, ok := r.overrides[ident.Name]
	if !ok {
		return nil, nil
	}

	target := ov.Target()
	target.Address = ident.Address
	if target.Commit == "" && ov.BuildContext != "" {
		dir := filepath.Join(r.registry.Root(), ov.BuildContext)
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("override build context %s: %w", ov.BuildContext, err)
		}
		out, err := r.git.Output(ctx, dir, "rev-parse", "HEAD")
		if err != nil {
			return nil, fmt.Errorf("resolving override commit for %s: %w", ident.Name, err)
		}
		target.Commit = strings.TrimSpace(out)
	}
	r.logger.Debug("resolved from override table", "name", ident.Name, "repo", target.Repo)
	return &target, nil
}

// fromFilePath applies tiers 2 and 3 when the reported file path names a
// dependency checkout (e.g. "lib/euler-vault-kit/src/EVault.sol").
func (r *Resolver) fromFilePath(ctx context.Context, filePath string) (string, string, error) {
	prefix := r.depDir + "/"
	if filePath == "" || !strings.HasPrefix(filePath, prefix) {
		return "", "", nil
	}
	rest := strings.TrimPrefix(filePath, prefix)
	libName, _, ok := strings.Cut(rest, "/")
	if !ok || libName == "" {
		return "", "", nil
	}

	// Tier 2: top-level checkout with a matching directory name.
	if repo, ok := r.registry.ByName(libName); ok {
		commit, err := r.registry.HeadCommit(ctx, repo)
		if err != nil {
			return "", "", err
		}
		return repo.ID, commit, nil
	}

	// Tier 3: periphery's nested dependencies. The outer checkout is the
	// build target because the contract compiles with its remappings and
	// sibling dependencies.
	if r.periphery == "" {
		return "", "", nil
	}
	parent, ok := r.registry.ByID(r.periphery)
	if !ok {
		return "", "", nil
	}
	nested, err := r.registry.NestedSubmodule(ctx, parent, r.depDir+"/"+libName)
	if err != nil || nested == nil {
		return "", "", err
	}
	commit, err := r.registry.HeadCommit(ctx, parent)
	if err != nil {
		return "", "", err
	}
	r.logger.Debug("resolved via periphery nested dependency",
		"lib", libName, "periphery", parent.ID)
	return parent.ID, commit, nil
}

// fromSourceTree applies tier 4: search each checkout's source directories
// for <artifact>.sol, excluding test directories and test-suffixed files.
func (r *Resolver) fromSourceTree(ctx context.Context, artifact string) (string, string, error) {
	want := artifact + sourceExt
	for _, repo := range r.registry.All() {
		if !repoContainsSource(repo.Path, want) {
			continue
		}
		commit, err := r.registry.HeadCommit(ctx, repo)
		if err != nil {
			return "", "", err
		}
		return repo.ID, commit, nil
	}
	return "", "", nil
}

func repoContainsSource(repoPath, fileName string) bool {
	for _, src := range sourceDirs {
		root := filepath.Join(repoPath, src)
		if _, err := os.Stat(root); err != nil {
			continue
		}
		found := false
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if d.Name() == "test" || d.Name() == "tests" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(d.Name(), ".t"+sourceExt) {
				return nil
			}
			if d.Name() == fileName {
				found = true
				return filepath.SkipAll
			}
			return nil
		})
		if found {
			return true
		}
	}
	return false
}
