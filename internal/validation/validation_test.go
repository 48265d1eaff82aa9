package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid lowercase", "0x1234567890123456789012345678901234567890", false},
		{"valid mixed case", "0x000000000022D473030F116dDEE9F6B43aC78BA3", false},
		{"empty", "", true},
		{"too short", "0x1234", true},
		{"not hex", "0xzzzz567890123456789012345678901234567890", true},
		{"missing prefix still valid hex", "1234567890123456789012345678901234567890", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t,
		"0x000000000022d473030f116ddee9f6b43ac78ba3",
		NormalizeAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3"))
}

func TestSolcRelease(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"v0.8.17+commit.8df45f5f", "0.8.17"},
		{"0.8.28", "0.8.28"},
		{"solc 0.7.6+commit.7338295f.Linux.g++", "0.7.6"},
		{"", ""},
		{"not-a-version", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SolcRelease(tt.in), "input %q", tt.in)
	}
}
