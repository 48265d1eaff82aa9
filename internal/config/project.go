package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pendergraft/veriforge/internal/contracts"
)

// Project is the YAML project file: the data-heavy configuration that does
// not belong in environment variables.
type Project struct {
	// Periphery names the checkout whose nested dependencies the resolver
	// searches when no top-level checkout matches (e.g. "euler-xyz/evk-periphery").
	Periphery string `yaml:"periphery"`

	// AddressFiles are the name -> address JSON files, relative to the
	// project root.
	AddressFiles []string `yaml:"address_files"`

	// Overrides is the static override table for contracts that cannot be
	// discovered automatically. Loaded once at start and treated as
	// immutable.
	Overrides map[string]Override `yaml:"overrides"`
}

// Override fully specifies a build target for one logical contract name.
// Commit may be omitted when BuildContext names a nested checkout whose
// pinned revision should be used instead.
type Override struct {
	Address             string `yaml:"address"`
	Repo                string `yaml:"repo"`
	Commit              string `yaml:"commit"`
	ArtifactName        string `yaml:"artifact_name"`
	FilePath            string `yaml:"file_path"`
	BuildContext        string `yaml:"build_context"`
	CompilerVersion     string `yaml:"compiler_version"`
	OptimizationEnabled *bool  `yaml:"optimization_enabled"`
	OptimizationRuns    *int   `yaml:"optimization_runs"`
	EVMVersion          string `yaml:"evm_version"`
	ViaIR               *bool  `yaml:"via_ir"`
}

// Target converts an override into a build target.
func (o Override) Target() contracts.Target {
	return contracts.Target{
		Address:      o.Address,
		Repo:         o.Repo,
		Commit:       o.Commit,
		ArtifactName: o.ArtifactName,
		FilePath:     o.FilePath,
		Settings: contracts.Settings{
			CompilerVersion:     o.CompilerVersion,
			OptimizationEnabled: o.OptimizationEnabled,
			OptimizationRuns:    o.OptimizationRuns,
			EVMVersion:          o.EVMVersion,
			ViaIR:               o.ViaIR,
		},
	}
}

// LoadProject reads the project YAML file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing project file: %w", err)
	}
	return &p, nil
}
