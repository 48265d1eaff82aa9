package report

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/veriforge/internal/bytecode"
)

func TestReportFinishSortsAndCounts(t *testing.T) {
	r := New()
	r.Add(Outcome{Name: "Zebra", Address: "0x2", Verified: true})
	r.Add(Outcome{Name: "Alpha", Address: "0x1", Verified: true})
	r.Add(Outcome{Name: "Broken", Address: "0x3", ErrorKind: KindMismatch})
	r.Skip("Unmapped")
	r.Finish()

	assert.Equal(t, Summary{Total: 4, Verified: 2, Failed: 1, Skipped: 1}, r.Summary)
	assert.Equal(t, "Alpha", r.Verified[0].Name)
	assert.Equal(t, "Zebra", r.Verified[1].Name)
	assert.False(t, r.Ok())
	assert.False(t, r.FinishedAt.Before(r.StartedAt))
	require.NotEmpty(t, r.RunID)
}

func TestReportSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	r := New()
	pos := 2
	r.Add(Outcome{
		Name:      "EVault",
		Address:   "0xabc",
		ErrorKind: KindMismatch,
		Error:     "deployed bytecode does not match",
		Details: &Details{
			Repo:   "euler-xyz/euler-vault-kit",
			Commit: "deadbeef",
			Diagnostics: bytecode.Diagnostics{
				DeployedSize:      2,
				CompiledSize:      2,
				FirstDiffPosition: &pos,
				FirstDiffDeployed: "6002",
				FirstDiffCompiled: "6001",
			},
		},
	})
	r.Finish()
	require.NoError(t, r.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, loaded.RunID)
	require.Len(t, loaded.Failed, 1)
	out := loaded.Failed[0]
	assert.Equal(t, KindMismatch, out.ErrorKind)
	require.NotNil(t, out.Details.FirstDiffPosition)
	assert.Equal(t, 2, *out.Details.FirstDiffPosition)
	assert.Equal(t, "6002", out.Details.FirstDiffDeployed)
}

func TestReportLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	r := New()
	pos := 6
	r.Add(Outcome{Name: "Good", Address: "0x1", Verified: true})
	r.Add(Outcome{
		Name:      "Bad",
		Address:   "0x2",
		ErrorKind: KindMismatch,
		Error:     "deployed bytecode does not match",
		Details: &Details{
			Repo:   "acme/repo",
			Commit: "0123456789abcdef0123",
			Diagnostics: bytecode.Diagnostics{
				DeployedSize:      100,
				CompiledSize:      100,
				FirstDiffPosition: &pos,
				FirstDiffDeployed: "ff",
				FirstDiffCompiled: "00",
			},
		},
	})
	r.Finish()

	var sb strings.Builder
	r.PrintSummary(&sb)
	out := sb.String()

	assert.Contains(t, out, "verified: 1")
	assert.Contains(t, out, "failed:   1")
	assert.Contains(t, out, "FAIL Bad (0x2): bytecode_mismatch")
	assert.Contains(t, out, "built from acme/repo@0123456789ab")
	assert.Contains(t, out, "first difference at position 6")
}
