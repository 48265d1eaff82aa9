// Package addrbook reads the deployment repository's address files (flat
// name -> address JSON documents) and diffs them between git refs to find
// contracts needing verification.
package addrbook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/repos"
)

// Entry is one address-book row, optionally annotated with how it changed
// between two refs.
type Entry struct {
	File       string `json:"file"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	OldAddress string `json:"old_address,omitempty"`
	ChangeType string `json:"change_type,omitempty"`
}

// Identity converts an entry to a contract identity.
func (e Entry) Identity() contracts.Identity {
	return contracts.NewIdentity(e.Name, e.Address)
}

// Changes is the outcome of diffing the address book between two refs.
type Changes struct {
	New      []Entry `json:"new"`
	Modified []Entry `json:"modified"`
	Removed  []Entry `json:"removed"`
}

// ToVerify returns the entries a verification run should cover: additions
// and modifications. Removals have nothing on chain to check.
func (c *Changes) ToVerify() []Entry {
	out := make([]Entry, 0, len(c.New)+len(c.Modified))
	out = append(out, c.New...)
	out = append(out, c.Modified...)
	return out
}

// Total returns the number of detected changes of any kind.
func (c *Changes) Total() int {
	return len(c.New) + len(c.Modified) + len(c.Removed)
}

// Book loads and diffs address files.
type Book struct {
	root   string
	files  []string
	git    repos.Git
	logger *slog.Logger
}

// New creates an address book over the given files, paths relative to root.
func New(root string, files []string, git repos.Git, logger *slog.Logger) *Book {
	return &Book{root: root, files: files, git: git, logger: logger}
}

// Load reads every address file from the working tree and returns the
// identities to verify. Zero and empty addresses are dropped; names within a
// file are emitted in sorted order so runs are reproducible.
func (b *Book) Load() ([]contracts.Identity, error) {
	var idents []contracts.Identity
	for _, file := range b.files {
		data, err := os.ReadFile(filepath.Join(b.root, file))
		if err != nil {
			return nil, fmt.Errorf("reading address file %s: %w", file, err)
		}
		entries, err := parseAddressFile(file, data)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			idents = append(idents, e.Identity())
		}
	}
	return idents, nil
}

// Diff compares the address files between two refs. A file missing or
// unparsable at a ref contributes nothing for that side.
func (b *Book) Diff(ctx context.Context, baseRef, headRef string) (*Changes, error) {
	base := b.loadAtRef(ctx, baseRef)
	head := b.loadAtRef(ctx, headRef)

	changes := &Changes{}
	for key, entry := range head {
		old, existed := base[key]
		switch {
		case !existed:
			entry.ChangeType = "added"
			changes.New = append(changes.New, entry)
		case old.Address != entry.Address:
			entry.ChangeType = "modified"
			entry.OldAddress = old.Address
			changes.Modified = append(changes.Modified, entry)
		}
	}
	for key, entry := range base {
		if _, still := head[key]; !still {
			entry.ChangeType = "removed"
			changes.Removed = append(changes.Removed, entry)
		}
	}

	sortEntries(changes.New)
	sortEntries(changes.Modified)
	sortEntries(changes.Removed)
	return changes, nil
}

type entryKey struct {
	file string
	name string
}

func (b *Book) loadAtRef(ctx context.Context, ref string) map[entryKey]Entry {
	out := make(map[entryKey]Entry)
	for _, file := range b.files {
		content, err := b.git.Output(ctx, b.root, "show", ref+":"+file)
		if err != nil {
			// file does not exist at this ref
			continue
		}
		entries, err := parseAddressFile(file, []byte(content))
		if err != nil {
			b.logger.Warn("skipping unparsable address file", "file", file, "ref", ref, "error", err)
			continue
		}
		for _, e := range entries {
			out[entryKey{file: file, name: e.Name}] = e
		}
	}
	return out
}

func parseAddressFile(file string, data []byte) ([]Entry, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing address file %s: %w", file, err)
	}

	entries := make([]Entry, 0, len(raw))
	for name, addr := range raw {
		if addr == "" || addr == contracts.ZeroAddress {
			continue
		}
		ident := contracts.NewIdentity(name, addr)
		entries = append(entries, Entry{File: file, Name: ident.Name, Address: ident.Address})
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].File != entries[j].File {
			return entries[i].File < entries[j].File
		}
		return entries[i].Name < entries[j].Name
	})
}

// SaveChanged writes the to-verify list as JSON, the format consumed by
// LoadChanged.
func SaveChanged(path string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding changed addresses: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadChanged reads a changed-address list produced by SaveChanged.
func LoadChanged(path string) ([]contracts.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading changed addresses: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing changed addresses: %w", err)
	}
	idents := make([]contracts.Identity, 0, len(entries))
	for _, e := range entries {
		idents = append(idents, e.Identity())
	}
	return idents, nil
}
