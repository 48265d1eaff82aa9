// Package artifacts locates compiled Foundry artifacts in a checkout's
// output directory.
package artifacts

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound means the output directory holds no artifact for the requested
// contract name.
var ErrNotFound = errors.New("artifact not found")

const outDir = "out"

// Artifact is one compiled contract: its creation bytecode and its runtime
// bytecode, both 0x-prefixed hex.
type Artifact struct {
	Name             string
	Path             string
	Bytecode         string
	DeployedBytecode string
}

// foundryArtifact is the subset of a Foundry artifact JSON file we read.
type foundryArtifact struct {
	ContractName     string         `json:"contractName"`
	Bytecode         bytecodeObject `json:"bytecode"`
	DeployedBytecode bytecodeObject `json:"deployedBytecode"`
}

type bytecodeObject struct {
	Object string `json:"object"`
}

// Locate scans a checkout's out/ directory for the named contract's
// artifact. A file matches on its stem or on the contract name the artifact
// declares; matching is case-insensitive, but an exact-case match wins over
// a folded one. Artifacts without bytecode (interfaces, abstract contracts)
// are skipped.
func Locate(dir, name string) (*Artifact, error) {
	root := filepath.Join(dir, outDir)
	if _, err := os.Stat(root); err != nil {
		return nil, ErrNotFound
	}

	var exact, folded *Artifact
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		stem := strings.TrimSuffix(d.Name(), ".json")

		artifact, declared, ok := readArtifact(path, stem)
		if !ok {
			return nil
		}
		if stem == name || declared == name {
			exact = artifact
			return filepath.SkipAll
		}
		if folded == nil && (strings.EqualFold(stem, name) || strings.EqualFold(declared, name)) {
			folded = artifact
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if exact != nil {
		return exact, nil
	}
	if folded != nil {
		return folded, nil
	}
	return nil, ErrNotFound
}

// readArtifact parses one artifact file, returning the artifact and the
// contract name it declares (empty when the file carries none).
func readArtifact(path, stem string) (*Artifact, string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", false
	}
	var raw foundryArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, "", false
	}
	if emptyBytecode(raw.Bytecode.Object) && emptyBytecode(raw.DeployedBytecode.Object) {
		return nil, "", false
	}
	name := raw.ContractName
	if name == "" {
		name = stem
	}
	return &Artifact{
		Name:             name,
		Path:             path,
		Bytecode:         raw.Bytecode.Object,
		DeployedBytecode: raw.DeployedBytecode.Object,
	}, raw.ContractName, true
}

func emptyBytecode(hex string) bool {
	return hex == "" || hex == "0x"
}
