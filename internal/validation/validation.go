// Package validation provides input validation for veriforge.
package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/mod/semver"
)

// solcReleaseRegex extracts the release triple from a reported compiler
// identifier such as "v0.8.17+commit.8df45f5f".
var solcReleaseRegex = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// ValidateAddress validates a hex EVM address.
func ValidateAddress(addr string) error {
	if addr == "" {
		return errors.New("address cannot be empty")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: must be a 0x-prefixed 20-byte hex value")
	}
	return nil
}

// NormalizeAddress canonicalizes an address to lowercase.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

// SolcRelease parses the compiler release out of a reported compiler version
// string. Returns "" when no valid release can be extracted, in which case
// the checkout's default compiler is kept.
func SolcRelease(version string) string {
	m := solcReleaseRegex.FindStringSubmatch(version)
	if m == nil {
		return ""
	}
	release := m[1]
	if !semver.IsValid("v" + release) {
		return ""
	}
	return release
}
