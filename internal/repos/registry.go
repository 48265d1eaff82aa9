// Package repos tracks the known repositories: the locally pinned checkouts
// declared as submodules of the deployment repository, each inspectable for
// its current pinned revision.
package repos

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Repo is a known repository: a short id of the form "org/name" and its
// local checkout path.
type Repo struct {
	ID   string
	Path string
}

// Name returns the repository's directory name (the last path element of the
// local checkout).
func (r Repo) Name() string {
	return filepath.Base(r.Path)
}

// Nested describes a nested submodule inside a parent checkout.
type Nested struct {
	ID     string
	Path   string
	Commit string
}

// Registry is the known-repositories table.
type Registry struct {
	root  string
	repos []Repo
	git   Git
}

// Load builds a registry from the .gitmodules file at root.
func Load(root string, git Git) (*Registry, error) {
	data, err := os.ReadFile(filepath.Join(root, ".gitmodules"))
	if err != nil {
		return nil, fmt.Errorf("reading .gitmodules: %w", err)
	}

	subs := ParseGitmodules(data)
	repos := make([]Repo, 0, len(subs))
	for _, sub := range subs {
		id := RepoIDFromURL(sub.URL)
		if id == "" {
			continue
		}
		repos = append(repos, Repo{ID: id, Path: filepath.Join(root, sub.Path)})
	}

	// Lexicographic order by id makes every registry scan deterministic.
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })

	return &Registry{root: root, repos: repos, git: git}, nil
}

// Root returns the deployment repository root the registry was loaded from.
func (r *Registry) Root() string {
	return r.root
}

// All returns the known repositories in lexicographic id order.
func (r *Registry) All() []Repo {
	out := make([]Repo, len(r.repos))
	copy(out, r.repos)
	return out
}

// ByID looks up a repository by its "org/name" id.
func (r *Registry) ByID(id string) (Repo, bool) {
	for _, repo := range r.repos {
		if repo.ID == id {
			return repo, true
		}
	}
	return Repo{}, false
}

// ByName looks up a repository whose checkout directory name matches,
// provided the checkout actually exists on disk.
func (r *Registry) ByName(name string) (Repo, bool) {
	for _, repo := range r.repos {
		if repo.Name() != name {
			continue
		}
		if _, err := os.Stat(repo.Path); err != nil {
			continue
		}
		return repo, true
	}
	return Repo{}, false
}

// HeadCommit returns the currently pinned revision of a checkout.
func (r *Registry) HeadCommit(ctx context.Context, repo Repo) (string, error) {
	out, err := r.git.Output(ctx, repo.Path, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving HEAD of %s: %w", repo.ID, err)
	}
	return strings.TrimSpace(out), nil
}

// NestedSubmodule inspects a parent checkout for a nested submodule at
// subPath and returns its identity and pinned revision. Returns nil when the
// parent does not declare or contain such a submodule.
func (r *Registry) NestedSubmodule(ctx context.Context, parent Repo, subPath string) (*Nested, error) {
	dir := filepath.Join(parent.Path, subPath)
	if _, err := os.Stat(dir); err != nil {
		return nil, nil
	}

	url, err := r.git.Output(ctx, parent.Path,
		"config", "--file", ".gitmodules", "--get", fmt.Sprintf("submodule.%s.url", subPath))
	if err != nil {
		return nil, nil
	}

	commit, err := r.git.Output(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolving nested submodule %s: %w", subPath, err)
	}

	return &Nested{
		ID:     RepoIDFromURL(strings.TrimSpace(url)),
		Path:   dir,
		Commit: strings.TrimSpace(commit),
	}, nil
}

// Submodule is one entry of a .gitmodules file.
type Submodule struct {
	Name string
	Path string
	URL  string
}

// ParseGitmodules parses the git-config style .gitmodules format. There is
// no third-party parser for this format; the grammar is three fields per
// bracketed section.
func ParseGitmodules(data []byte) []Submodule {
	var subs []Submodule
	var cur *Submodule

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "[submodule ") {
			if cur != nil && cur.Path != "" && cur.URL != "" {
				subs = append(subs, *cur)
			}
			name := strings.TrimPrefix(line, "[submodule ")
			name = strings.Trim(strings.TrimSuffix(name, "]"), `"`)
			cur = &Submodule{Name: name}
			continue
		}
		if cur == nil {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "path":
			cur.Path = strings.TrimSpace(value)
		case "url":
			cur.URL = strings.TrimSpace(value)
		}
	}
	if cur != nil && cur.Path != "" && cur.URL != "" {
		subs = append(subs, *cur)
	}
	return subs
}

// RepoIDFromURL derives the "org/name" id from a git remote URL.
func RepoIDFromURL(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	parts := strings.Split(url, "/")
	if len(parts) < 2 {
		return ""
	}
	org := parts[len(parts)-2]
	name := parts[len(parts)-1]
	// scp-style remotes: git@host:org/name
	if i := strings.LastIndex(org, ":"); i != -1 {
		org = org[i+1:]
	}
	if org == "" || name == "" {
		return ""
	}
	return org + "/" + name
}
