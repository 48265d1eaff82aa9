package build

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/validation"
)

// FoundryConfig is the checkout's build configuration file.
const FoundryConfig = "foundry.toml"

// Directory names that point forge away from scripts and tests so a
// verification build compiles only the contracts themselves.
const (
	disabledScriptDir = "disabled_script"
	disabledTestDir   = "disabled_test"
)

// PatchFoundryConfig rewrites a checkout's foundry.toml so the default
// profile compiles with the verifier-reported settings and skips scripts and
// tests. Patching is idempotent: applying the same settings twice yields the
// same file.
func PatchFoundryConfig(path string, settings contracts.Settings) error {
	var doc map[string]any
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", FoundryConfig, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	profiles, ok := doc["profile"].(map[string]any)
	if !ok {
		profiles = map[string]any{}
		doc["profile"] = profiles
	}
	def, ok := profiles["default"].(map[string]any)
	if !ok {
		def = map[string]any{}
		profiles["default"] = def
	}

	def["script"] = disabledScriptDir
	def["test"] = disabledTestDir

	if settings.OptimizationEnabled != nil {
		def["optimizer"] = *settings.OptimizationEnabled
	}
	if settings.OptimizationRuns != nil {
		def["optimizer_runs"] = *settings.OptimizationRuns
	}
	if settings.EVMVersion != "" {
		def["evm_version"] = strings.ToLower(settings.EVMVersion)
	}
	if settings.ViaIR != nil {
		def["via_ir"] = *settings.ViaIR
	}
	if release := validation.SolcRelease(settings.CompilerVersion); release != "" {
		def["solc"] = release
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", FoundryConfig, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
