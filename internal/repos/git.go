package repos

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Git runs git commands in a working directory. The interface exists so
// callers can fake version-control state in tests.
type Git interface {
	// Output runs git with the given arguments and returns stdout.
	Output(ctx context.Context, dir string, args ...string) (string, error)
	// Run runs git for its side effects.
	Run(ctx context.Context, dir string, args ...string) error
}

// ExecGit is the exec-backed Git implementation. Every invocation gets its
// own timeout so a hung remote cannot stall the whole run.
type ExecGit struct {
	Timeout time.Duration
}

// NewGit returns an exec-backed Git with a default per-command timeout.
func NewGit() *ExecGit {
	return &ExecGit{Timeout: 2 * time.Minute}
}

// Output implements Git.
func (g *ExecGit) Output(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Run implements Git.
func (g *ExecGit) Run(ctx context.Context, dir string, args ...string) error {
	_, err := g.Output(ctx, dir, args...)
	return err
}

// Show returns the contents of path at the given ref, using the repository
// at dir. Used by changed-address detection.
func (g *ExecGit) Show(ctx context.Context, dir, ref, path string) ([]byte, error) {
	out, err := g.Output(ctx, dir, "show", ref+":"+path)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
