// Package contracts holds the core domain types shared across the
// verification engine: deployed-contract identities, compiler settings,
// build targets, and the persisted name-to-target mapping.
package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoMapping is returned when a contract cannot be resolved to a build target.
var ErrNoMapping = errors.New("no mapping")

// ZeroAddress is the canonical empty EVM address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Identity names a deployed contract: a logical name and its on-chain address.
// Addresses are canonicalized to lowercase at ingestion and immutable after.
type Identity struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// NewIdentity builds an Identity with a canonicalized address.
func NewIdentity(name, address string) Identity {
	return Identity{Name: name, Address: strings.ToLower(address)}
}

// Settings are the compiler settings reported for a deployment. Pointer
// fields distinguish "not specified" from a zero value; unspecified fields
// never override the checkout's defaults.
type Settings struct {
	CompilerVersion     string `json:"compiler_version,omitempty"`
	OptimizationEnabled *bool  `json:"optimization_enabled,omitempty"`
	OptimizationRuns    *int   `json:"optimization_runs,omitempty"`
	EVMVersion          string `json:"evm_version,omitempty"`
	ViaIR               *bool  `json:"via_ir,omitempty"`
}

// key renders the settings in a canonical form for build grouping.
func (s Settings) key() string {
	parts := []string{
		s.CompilerVersion,
		fmtBool(s.OptimizationEnabled),
		fmtInt(s.OptimizationRuns),
		s.EVMVersion,
		fmtBool(s.ViaIR),
	}
	return strings.Join(parts, "|")
}

func fmtBool(b *bool) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("%t", *b)
}

func fmtInt(i *int) string {
	if i == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *i)
}

// Target identifies what to compile and how: repository, pinned revision,
// artifact name, and compiler settings.
type Target struct {
	Address      string `json:"address,omitempty"`
	Repo         string `json:"repo"`
	Commit       string `json:"commit"`
	ArtifactName string `json:"artifact_name"`
	FilePath     string `json:"file_path,omitempty"`
	VerifiedAt   string `json:"verified_at,omitempty"`
	Settings
}

// GroupKey is the build-deduplication key. Artifact name and file path are
// deliberately excluded: many artifacts are built together from one checkout.
type GroupKey struct {
	Repo     string
	Commit   string
	settings string
}

// GroupKey returns the grouping key for this target.
func (t Target) GroupKey() GroupKey {
	return GroupKey{Repo: t.Repo, Commit: t.Commit, settings: t.Settings.key()}
}

// String renders the key for logs.
func (k GroupKey) String() string {
	commit := k.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return k.Repo + "@" + commit
}

// Mapping is the persisted logical-name -> Target table produced by the
// mapping generator and consumed as authoritative input by verification.
type Mapping map[string]Target

// LoadMapping reads a mapping file from disk.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing mapping file: %w", err)
	}
	return m, nil
}

// Save writes the mapping to disk.
func (m Mapping) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding mapping: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing mapping file: %w", err)
	}
	return nil
}

// Resolve looks up the build target for an identity. It implements the
// driver's resolver contract over the persisted mapping file.
func (m Mapping) Resolve(_ context.Context, ident Identity) (*Target, error) {
	t, ok := m[ident.Name]
	if !ok {
		return nil, ErrNoMapping
	}
	return &t, nil
}

// Bool returns a pointer to b, for building optional settings.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i, for building optional settings.
func Int(i int) *int { return &i }
