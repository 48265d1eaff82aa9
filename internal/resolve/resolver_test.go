package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/veriforge/internal/config"
	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/repos"
)

type fakeGit struct {
	outputs map[string]string
}

func (f *fakeGit) Output(_ context.Context, dir string, args ...string) (string, error) {
	key := dir + "|" + strings.Join(args, " ")
	out, ok := f.outputs[key]
	if !ok {
		return "", fmt.Errorf("unexpected git call: %s", key)
	}
	return out, nil
}

func (f *fakeGit) Run(_ context.Context, dir string, args ...string) error {
	_, err := f.Output(context.Background(), dir, args...)
	return err
}

const gitmodulesFixture = `[submodule "lib/euler-vault-kit"]
	path = lib/euler-vault-kit
	url = https://github.com/euler-xyz/euler-vault-kit.git
[submodule "lib/euler-periphery"]
	path = lib/euler-periphery
	url = https://github.com/euler-xyz/euler-periphery.git
[submodule "lib/aaa-other"]
	path = lib/aaa-other
	url = https://github.com/acme/aaa-other.git
`

// newTestWorld lays out a deployment root with three checkouts and a nested
// submodule inside the periphery checkout.
func newTestWorld(t *testing.T) (string, *repos.Registry, *fakeGit) {
	t.Helper()
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitmodules"), []byte(gitmodulesFixture), 0o644))

	mustWrite := func(parts ...string) {
		path := filepath.Join(append([]string{root}, parts...)...)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("contract"), 0o644))
	}

	mustWrite("lib", "euler-vault-kit", "src", "EVault.sol")
	mustWrite("lib", "euler-vault-kit", "src", "Shared.sol")
	mustWrite("lib", "euler-vault-kit", "src", "test", "Hidden.sol")
	mustWrite("lib", "euler-vault-kit", "src", "Hidden.t.sol")
	mustWrite("lib", "aaa-other", "src", "Shared.sol")
	mustWrite("lib", "euler-periphery", "lib", "permit2", "src", "Permit2.sol")

	git := &fakeGit{outputs: map[string]string{
		filepath.Join(root, "lib/euler-vault-kit") + "|rev-parse HEAD":                                            "vaultcommit\n",
		filepath.Join(root, "lib/euler-periphery") + "|rev-parse HEAD":                                            "periphcommit\n",
		filepath.Join(root, "lib/aaa-other") + "|rev-parse HEAD":                                                  "othercommit\n",
		filepath.Join(root, "lib/euler-periphery") + "|config --file .gitmodules --get submodule.lib/permit2.url": "https://github.com/Uniswap/permit2.git\n",
		filepath.Join(root, "lib/euler-periphery/lib/permit2") + "|rev-parse HEAD":                                "permit2commit\n",
	}}

	registry, err := repos.Load(root, git)
	require.NoError(t, err)
	return root, registry, git
}

func newTestResolver(registry *repos.Registry, git repos.Git, project *config.Project) *Resolver {
	if project == nil {
		project = &config.Project{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(registry, git, project, "lib", logger)
}

func TestResolveOverride(t *testing.T) {
	_, registry, git := newTestWorld(t)
	project := &config.Project{
		Overrides: map[string]config.Override{
			"Permit2": {
				Repo:            "Uniswap/permit2",
				Commit:          "pinned",
				ArtifactName:    "Permit2",
				CompilerVersion: "0.8.17",
			},
		},
	}
	r := newTestResolver(registry, git, project)

	target, err := r.Resolve(context.Background(), contracts.NewIdentity("Permit2", "0xABCD000000000000000000000000000000000001"), Hint{})
	require.NoError(t, err)
	assert.Equal(t, "Uniswap/permit2", target.Repo)
	assert.Equal(t, "pinned", target.Commit)
	assert.Equal(t, "0xabcd000000000000000000000000000000000001", target.Address)
	assert.Equal(t, "0.8.17", target.Settings.CompilerVersion)
}

func TestResolveOverrideBuildContextCommit(t *testing.T) {
	root, registry, git := newTestWorld(t)
	git.outputs[filepath.Join(root, "lib/euler-periphery")+"|rev-parse HEAD"] = "ctxcommit\n"

	project := &config.Project{
		Overrides: map[string]config.Override{
			"Permit2": {
				Repo:         "Uniswap/permit2",
				ArtifactName: "Permit2",
				BuildContext: "lib/euler-periphery",
			},
		},
	}
	r := newTestResolver(registry, git, project)

	target, err := r.Resolve(context.Background(), contracts.NewIdentity("Permit2", "0x1"), Hint{})
	require.NoError(t, err)
	assert.Equal(t, "ctxcommit", target.Commit)
}

func TestResolvePathGuided(t *testing.T) {
	_, registry, git := newTestWorld(t)
	r := newTestResolver(registry, git, nil)

	target, err := r.Resolve(context.Background(),
		contracts.NewIdentity("EVault", "0x2"),
		Hint{ArtifactName: "EVault", FilePath: "lib/euler-vault-kit/src/EVault.sol"})
	require.NoError(t, err)
	assert.Equal(t, "euler-xyz/euler-vault-kit", target.Repo)
	assert.Equal(t, "vaultcommit", target.Commit)
	assert.Equal(t, "lib/euler-vault-kit/src/EVault.sol", target.FilePath)
}

func TestResolvePeripheryNested(t *testing.T) {
	_, registry, git := newTestWorld(t)
	project := &config.Project{Periphery: "euler-xyz/euler-periphery"}
	r := newTestResolver(registry, git, project)

	// permit2 is not a top-level checkout, but the periphery checkout vendors
	// it. The target is the outer checkout, at the outer checkout's revision.
	target, err := r.Resolve(context.Background(),
		contracts.NewIdentity("Permit2", "0x3"),
		Hint{ArtifactName: "Permit2", FilePath: "lib/permit2/src/Permit2.sol"})
	require.NoError(t, err)
	assert.Equal(t, "euler-xyz/euler-periphery", target.Repo)
	assert.Equal(t, "periphcommit", target.Commit)
}

func TestResolvePeripheryNestedMissing(t *testing.T) {
	_, registry, git := newTestWorld(t)
	project := &config.Project{Periphery: "euler-xyz/euler-periphery"}
	r := newTestResolver(registry, git, project)

	_, err := r.Resolve(context.Background(),
		contracts.NewIdentity("Nope", "0x3"),
		Hint{ArtifactName: "Nope", FilePath: "lib/nonexistent/src/Nope.sol"})
	assert.ErrorIs(t, err, contracts.ErrNoMapping)
}

func TestResolveSourceTreeSearch(t *testing.T) {
	_, registry, git := newTestWorld(t)
	r := newTestResolver(registry, git, nil)

	target, err := r.Resolve(context.Background(), contracts.NewIdentity("EVault", "0x4"), Hint{})
	require.NoError(t, err)
	assert.Equal(t, "euler-xyz/euler-vault-kit", target.Repo)
	assert.Equal(t, "vaultcommit", target.Commit)
	assert.Equal(t, "EVault", target.ArtifactName)
}

func TestResolveSourceTreeDeterministicOrder(t *testing.T) {
	_, registry, git := newTestWorld(t)
	r := newTestResolver(registry, git, nil)

	// Shared.sol exists in two checkouts; the lexicographically first
	// repository id wins.
	target, err := r.Resolve(context.Background(), contracts.NewIdentity("Shared", "0x5"), Hint{})
	require.NoError(t, err)
	assert.Equal(t, "acme/aaa-other", target.Repo)
}

func TestResolveSourceTreeIgnoresTests(t *testing.T) {
	_, registry, git := newTestWorld(t)
	r := newTestResolver(registry, git, nil)

	_, err := r.Resolve(context.Background(), contracts.NewIdentity("Hidden", "0x6"), Hint{})
	assert.ErrorIs(t, err, contracts.ErrNoMapping)
}

func TestResolveNoMapping(t *testing.T) {
	_, registry, git := newTestWorld(t)
	r := newTestResolver(registry, git, nil)

	_, err := r.Resolve(context.Background(), contracts.NewIdentity("Unknown", "0x7"), Hint{})
	assert.ErrorIs(t, err, contracts.ErrNoMapping)
}
