// Package report renders and persists verification run results.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pendergraft/veriforge/internal/bytecode"
)

// ErrorKind classifies why a contract failed verification.
type ErrorKind string

const (
	KindUnresolved       ErrorKind = "unresolved"
	KindBuildFailure     ErrorKind = "build_failure"
	KindFetchUnavailable ErrorKind = "fetch_unavailable"
	KindArtifactNotFound ErrorKind = "artifact_not_found"
	KindMismatch         ErrorKind = "bytecode_mismatch"
	KindInvalidBytecode  ErrorKind = "invalid_bytecode"
)

// Details carries per-contract diagnostic context alongside the comparison
// diagnostics.
type Details struct {
	Repo            string `json:"repo,omitempty"`
	Commit          string `json:"commit,omitempty"`
	CompilerVersion string `json:"compiler_version,omitempty"`
	BytecodeType    string `json:"bytecode_type,omitempty"`
	bytecode.Diagnostics
}

// Outcome is the result for one contract.
type Outcome struct {
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Verified  bool      `json:"verified"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	Details   *Details  `json:"details,omitempty"`
}

// Summary is the run's aggregate counts.
type Summary struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Report is one verification run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Verified   []Outcome `json:"verified"`
	Failed     []Outcome `json:"failed"`
	Skipped    []string  `json:"skipped,omitempty"`
	Summary    Summary   `json:"summary"`
}

// New creates an empty report with a fresh run id.
func New() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Add records an outcome in the appropriate bucket.
func (r *Report) Add(outcome Outcome) {
	if outcome.Verified {
		r.Verified = append(r.Verified, outcome)
	} else {
		r.Failed = append(r.Failed, outcome)
	}
}

// Skip records a contract that was deliberately not verified.
func (r *Report) Skip(name string) {
	r.Skipped = append(r.Skipped, name)
}

// Finish stamps the end time and computes the summary. Outcome lists are
// sorted by contract name so report output is stable run to run.
func (r *Report) Finish() {
	r.FinishedAt = time.Now().UTC()
	sortOutcomes(r.Verified)
	sortOutcomes(r.Failed)
	sort.Strings(r.Skipped)
	r.Summary = Summary{
		Total:    len(r.Verified) + len(r.Failed) + len(r.Skipped),
		Verified: len(r.Verified),
		Failed:   len(r.Failed),
		Skipped:  len(r.Skipped),
	}
}

// Ok reports whether every verified contract matched.
func (r *Report) Ok() bool {
	return len(r.Failed) == 0
}

func sortOutcomes(outcomes []Outcome) {
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].Name != outcomes[j].Name {
			return outcomes[i].Name < outcomes[j].Name
		}
		return outcomes[i].Address < outcomes[j].Address
	})
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Load reads a previously saved report.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &r, nil
}

// PrintSummary renders a human-readable summary.
func (r *Report) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	fmt.Fprintf(w, "  verified: %d\n", r.Summary.Verified)
	fmt.Fprintf(w, "  failed:   %d\n", r.Summary.Failed)
	fmt.Fprintf(w, "  skipped:  %d\n", r.Summary.Skipped)

	for _, o := range r.Failed {
		fmt.Fprintf(w, "\nFAIL %s (%s): %s\n", o.Name, o.Address, o.ErrorKind)
		if o.Error != "" {
			fmt.Fprintf(w, "  %s\n", o.Error)
		}
		if o.Details == nil {
			continue
		}
		d := o.Details
		if d.Repo != "" {
			fmt.Fprintf(w, "  built from %s@%s\n", d.Repo, shortCommit(d.Commit))
		}
		if o.ErrorKind == KindMismatch {
			fmt.Fprintf(w, "  deployed %d bytes, compiled %d bytes\n", d.DeployedSize, d.CompiledSize)
			if d.FirstDiffPosition != nil {
				fmt.Fprintf(w, "  first difference at position %d: %s != %s\n",
					*d.FirstDiffPosition, d.FirstDiffDeployed, d.FirstDiffCompiled)
			}
		}
	}
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
