// Package bytecode implements the pure bytecode-equivalence comparator.
//
// Compiled bytecode can legitimately diverge from on-chain bytecode in four
// ways: CBOR metadata trailers, ABI-encoded constructor arguments appended to
// creation code, factory (CREATE2) prefixes prepended by deployer contracts,
// and immutable-variable slots that are zero-filled at compile time and
// patched at deployment. Compare applies these heuristics in a fixed order;
// the first one that succeeds determines the outcome.
package bytecode

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// CBOR metadata marker: a2 64 "ipfs" 58 22 (Solidity >= 0.6.0).
var metadataMarker = []byte{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73, 0x58, 0x22}

// Length terminator that closes the metadata trailer (solc encodes the
// metadata length as the final two bytes, 0x0033 for current encodings).
var metadataEnd = []byte{0x00, 0x33}

// diffWindow is the number of bytes of context captured on each side of the
// first differing byte when reporting a mismatch.
const diffWindow = 10

// wordSize is the EVM word size; constructor arguments are ABI-encoded and
// therefore always a multiple of this.
const wordSize = 32

// create2ProbeLen is how many leading bytes of the compiled code are searched
// for inside the on-chain code when probing for a factory prefix.
const create2ProbeLen = 20

// Diagnostics are the named facts recorded while comparing two bytecodes.
// Sizes are in bytes; FirstDiffPosition is the hex-character offset of the
// first differing byte, matching how offsets appear in explorer output.
type Diagnostics struct {
	DeployedSize        int    `json:"deployed_size"`
	CompiledSize        int    `json:"compiled_size"`
	ConstructorArgsSize int    `json:"constructor_args_size,omitempty"`
	Create2PrefixSize   int    `json:"create2_prefix_size,omitempty"`
	ImmutableVars       int    `json:"immutable_vars,omitempty"`
	FirstDiffPosition   *int   `json:"first_diff_position,omitempty"`
	FirstDiffDeployed   string `json:"first_diff_deployed,omitempty"`
	FirstDiffCompiled   string `json:"first_diff_compiled,omitempty"`
}

// Result is the comparator verdict.
type Result struct {
	Match       bool
	Diagnostics Diagnostics
}

// StripMetadata removes every CBOR metadata trailer from the bytecode.
// Each occurrence of the marker through the next length terminator
// (inclusive) is removed; if the terminator is missing the bytecode is
// truncated at the marker. Bytecode without the marker is returned unchanged.
func StripMetadata(code []byte) []byte {
	out := code
	for {
		idx := bytes.Index(out, metadataMarker)
		if idx == -1 {
			return out
		}
		end := bytes.Index(out[idx:], metadataEnd)
		if end == -1 {
			return out[:idx]
		}
		stripped := make([]byte, 0, len(out))
		stripped = append(stripped, out[:idx]...)
		stripped = append(stripped, out[idx+end+len(metadataEnd):]...)
		out = stripped
	}
}

// Compare reports whether the deployed (on-chain) bytecode matches the
// compiled bytecode under the accepted equivalence rules. It is pure and
// deterministic; heuristics are tried in a fixed order and the first match
// wins.
func Compare(deployed, compiled []byte) Result {
	d := StripMetadata(deployed)
	c := StripMetadata(compiled)

	diag := Diagnostics{DeployedSize: len(d), CompiledSize: len(c)}

	// Exact match after metadata stripping.
	if bytes.Equal(d, c) {
		return Result{Match: true, Diagnostics: diag}
	}

	// Constructor arguments: deployed = compiled + ABI-encoded args.
	if len(d) > len(c) && (len(d)-len(c))%wordSize == 0 && bytes.Equal(d[:len(c)], c) {
		diag.ConstructorArgsSize = len(d) - len(c)
		return Result{Match: true, Diagnostics: diag}
	}

	// Factory (CREATE2) deployments can prepend bytes before the actual
	// initialization code. Search for the compiled code's leading bytes at a
	// nonzero offset.
	if len(d) > len(c) {
		probe := c
		if len(c) > create2ProbeLen {
			probe = c[:create2ProbeLen]
		}
		if idx := bytes.Index(d, probe); idx > 0 {
			trimmed := d[idx:]
			if bytes.Equal(trimmed, c) {
				diag.Create2PrefixSize = idx
				return Result{Match: true, Diagnostics: diag}
			}
			extra := len(trimmed) - len(c)
			if extra > 0 && extra%wordSize == 0 && bytes.Equal(trimmed[:len(c)], c) {
				diag.Create2PrefixSize = idx
				diag.ConstructorArgsSize = extra
				return Result{Match: true, Diagnostics: diag}
			}
		}
	}

	// Immutable variables: zero-filled in compiled output, patched with real
	// values at deployment. Only applicable when lengths are equal.
	if len(d) == len(c) && matchIgnoringImmutables(d, c, &diag) {
		return Result{Match: true, Diagnostics: diag}
	}

	recordFirstDiff(d, c, &diag)
	return Result{Match: false, Diagnostics: diag}
}

// CompareHex normalizes and decodes two hex payloads, then compares them.
func CompareHex(deployedHex, compiledHex string) (Result, error) {
	d, err := DecodeHex(deployedHex)
	if err != nil {
		return Result{}, fmt.Errorf("decoding deployed bytecode: %w", err)
	}
	c, err := DecodeHex(compiledHex)
	if err != nil {
		return Result{}, fmt.Errorf("decoding compiled bytecode: %w", err)
	}
	return Compare(d, c), nil
}

// DecodeHex decodes a hex payload, tolerating a 0x prefix and mixed case.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(strings.ToLower(s))
}

// matchIgnoringImmutables scans two equal-length bytecodes for maximal runs
// of differing bytes. A run is an acceptable immutable slot only when every
// differing position is zero on the compiled side; any nonzero compiled byte
// inside a run forces non-match. At least one slot must be found.
//
// Any number of all-zero runs is accepted. This is inherited behavior and a
// known source of false positives; the slot count is recorded so reviewers
// can flag pathological matches.
func matchIgnoringImmutables(d, c []byte, diag *Diagnostics) bool {
	slots := 0
	for i := 0; i < len(d); {
		if d[i] == c[i] {
			i++
			continue
		}
		start := i
		for i < len(d) && d[i] != c[i] {
			i++
		}
		for _, b := range c[start:i] {
			if b != 0 {
				return false
			}
		}
		slots++
	}
	if slots == 0 {
		return false
	}
	diag.ImmutableVars = slots
	return true
}

func recordFirstDiff(d, c []byte, diag *Diagnostics) {
	n := len(d)
	if len(c) < n {
		n = len(c)
	}
	for i := 0; i < n; i++ {
		if d[i] != c[i] {
			pos := i * 2
			diag.FirstDiffPosition = &pos
			diag.FirstDiffDeployed = hexWindow(d, i)
			diag.FirstDiffCompiled = hexWindow(c, i)
			return
		}
	}
}

func hexWindow(b []byte, at int) string {
	lo := at - diffWindow
	if lo < 0 {
		lo = 0
	}
	hi := at + diffWindow
	if hi > len(b) {
		hi = len(b)
	}
	return hex.EncodeToString(b[lo:hi])
}
