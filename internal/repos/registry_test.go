package repos

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gitmodules = `[submodule "lib/euler-vault-kit"]
	path = lib/euler-vault-kit
	url = https://github.com/euler-xyz/euler-vault-kit.git
[submodule "lib/evk-periphery"]
	path = lib/evk-periphery
	url = https://github.com/euler-xyz/evk-periphery
[submodule "lib/permit2"]
	path = lib/permit2
	url = git@github.com:Uniswap/permit2.git
`

// fakeGit serves canned outputs keyed by "dir|args...".
type fakeGit struct {
	outputs map[string]string
}

func (f *fakeGit) key(dir string, args ...string) string {
	return dir + "|" + strings.Join(args, " ")
}

func (f *fakeGit) Output(ctx context.Context, dir string, args ...string) (string, error) {
	if out, ok := f.outputs[f.key(dir, args...)]; ok {
		return out, nil
	}
	return "", errors.New("unexpected git invocation: " + f.key(dir, args...))
}

func (f *fakeGit) Run(ctx context.Context, dir string, args ...string) error {
	_, err := f.Output(ctx, dir, args...)
	return err
}

func writeRoot(t *testing.T, dirs ...string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitmodules"), []byte(gitmodules), 0644))
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0755))
	}
	return root
}

func TestParseGitmodules(t *testing.T) {
	subs := ParseGitmodules([]byte(gitmodules))
	require.Len(t, subs, 3)
	assert.Equal(t, "lib/euler-vault-kit", subs[0].Path)
	assert.Equal(t, "https://github.com/euler-xyz/euler-vault-kit.git", subs[0].URL)
}

func TestRepoIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/euler-xyz/euler-vault-kit.git", "euler-xyz/euler-vault-kit"},
		{"https://github.com/euler-xyz/evk-periphery", "euler-xyz/evk-periphery"},
		{"https://github.com/euler-xyz/evk-periphery/", "euler-xyz/evk-periphery"},
		{"git@github.com:Uniswap/permit2.git", "Uniswap/permit2"},
		{"garbage", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RepoIDFromURL(tt.url), "url %q", tt.url)
	}
}

func TestLoad_SortedByID(t *testing.T) {
	root := writeRoot(t)
	reg, err := Load(root, &fakeGit{})
	require.NoError(t, err)

	ids := []string{}
	for _, repo := range reg.All() {
		ids = append(ids, repo.ID)
	}
	assert.Equal(t, []string{"Uniswap/permit2", "euler-xyz/euler-vault-kit", "euler-xyz/evk-periphery"}, ids)
}

func TestByName_RequiresCheckoutOnDisk(t *testing.T) {
	root := writeRoot(t, "lib/euler-vault-kit")
	reg, err := Load(root, &fakeGit{})
	require.NoError(t, err)

	repo, ok := reg.ByName("euler-vault-kit")
	assert.True(t, ok)
	assert.Equal(t, "euler-xyz/euler-vault-kit", repo.ID)

	// Declared in .gitmodules but never checked out.
	_, ok = reg.ByName("permit2")
	assert.False(t, ok)

	_, ok = reg.ByName("unknown")
	assert.False(t, ok)
}

func TestHeadCommit(t *testing.T) {
	root := writeRoot(t, "lib/euler-vault-kit")
	g := &fakeGit{outputs: map[string]string{}}
	reg, err := Load(root, g)
	require.NoError(t, err)

	repo, _ := reg.ByID("euler-xyz/euler-vault-kit")
	g.outputs[g.key(repo.Path, "rev-parse", "HEAD")] = "abc123\n"

	commit, err := reg.HeadCommit(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, "abc123", commit)
}

func TestNestedSubmodule(t *testing.T) {
	root := writeRoot(t, "lib/evk-periphery/lib/permit2")
	g := &fakeGit{outputs: map[string]string{}}
	reg, err := Load(root, g)
	require.NoError(t, err)

	parent, _ := reg.ByID("euler-xyz/evk-periphery")
	nestedDir := filepath.Join(parent.Path, "lib/permit2")
	g.outputs[g.key(parent.Path, "config", "--file", ".gitmodules", "--get", "submodule.lib/permit2.url")] =
		"https://github.com/Uniswap/permit2.git\n"
	g.outputs[g.key(nestedDir, "rev-parse", "HEAD")] = "def456\n"

	nested, err := reg.NestedSubmodule(context.Background(), parent, "lib/permit2")
	require.NoError(t, err)
	require.NotNil(t, nested)
	assert.Equal(t, "Uniswap/permit2", nested.ID)
	assert.Equal(t, "def456", nested.Commit)
}

func TestNestedSubmodule_MissingDirectory(t *testing.T) {
	root := writeRoot(t, "lib/evk-periphery")
	reg, err := Load(root, &fakeGit{})
	require.NoError(t, err)

	parent, _ := reg.ByID("euler-xyz/evk-periphery")
	nested, err := reg.NestedSubmodule(context.Background(), parent, "lib/absent")
	require.NoError(t, err)
	assert.Nil(t, nested)
}
