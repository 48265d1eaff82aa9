package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pendergraft/veriforge/internal/addrbook"
	"github.com/pendergraft/veriforge/internal/config"
)

func createChangedCmd() *cobra.Command {
	var baseRef string
	var headRef string
	var output string

	cmd := &cobra.Command{
		Use:   "changed",
		Short: "Detect changed addresses between two git refs",
		Long: `Changed diffs the project's address files between two git refs and
reports contracts that were added, modified, or removed. New and modified
entries are written to a changed-addresses file that verify can consume
with --changed-file.

EXAMPLES:
  # Diff the last commit against HEAD
  veriforge changed --base HEAD~1

  # Diff a release tag against main and write the result
  veriforge changed --base v1.2.0 --head main --output changed.json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChanged(cmd.Context(), baseRef, headRef, output)
		},
	}

	cmd.Flags().StringVar(&baseRef, "base", "", "base git ref (required)")
	cmd.Flags().StringVar(&headRef, "head", "HEAD", "head git ref")
	cmd.Flags().StringVarP(&output, "output", "o", "changed-addresses.json", "file to write new and modified entries to")
	_ = cmd.MarkFlagRequired("base")

	return cmd
}

func runChanged(ctx context.Context, baseRef, headRef, output string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg)

	project, err := config.LoadProject(cfg.Project.File)
	if err != nil {
		return fmt.Errorf("loading project file: %w", err)
	}

	book := addrbook.New(cfg.Project.Root, project.AddressFiles, newGit(cfg), logger)
	changes, err := book.Diff(ctx, baseRef, headRef)
	if err != nil {
		return err
	}

	if changes.Total() == 0 {
		fmt.Printf("No address changes between %s and %s\n", baseRef, headRef)
		return nil
	}

	fmt.Printf("🔍 Address changes %s..%s\n\n", baseRef, headRef)
	printEntries("New", changes.New)
	printEntries("Modified", changes.Modified)
	printEntries("Removed", changes.Removed)

	toVerify := changes.ToVerify()
	if len(toVerify) == 0 {
		fmt.Println("Nothing to verify")
		return nil
	}

	if err := addrbook.SaveChanged(output, toVerify); err != nil {
		return err
	}
	fmt.Printf("📄 %d contract(s) to verify written to %s\n", len(toVerify), output)
	return nil
}

func printEntries(label string, entries []addrbook.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", label, len(entries))
	for _, e := range entries {
		if e.OldAddress != "" {
			fmt.Printf("  %s: %s -> %s (%s)\n", e.Name, e.OldAddress, e.Address, e.File)
		} else {
			fmt.Printf("  %s: %s (%s)\n", e.Name, e.Address, e.File)
		}
	}
	fmt.Println()
}
