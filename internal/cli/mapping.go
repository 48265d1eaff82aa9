package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pendergraft/veriforge/internal/addrbook"
	"github.com/pendergraft/veriforge/internal/config"
	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/explorer"
	"github.com/pendergraft/veriforge/internal/repos"
	"github.com/pendergraft/veriforge/internal/resolve"
)

func createMappingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Manage the contract build mapping",
	}

	cmd.AddCommand(createMappingGenerateCmd())

	return cmd
}

func createMappingGenerateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the name-to-build-target mapping",
		Long: `Generate resolves every contract in the project's address files to a
repository, commit, and artifact name, using the explorer's verified-source
records as hints, and writes the result as a mapping file.

Contracts the explorer has no verified source for are skipped. Contracts that
cannot be matched to any known repository are reported but left out of the
mapping.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMappingGenerate(cmd.Context(), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "mapping file to write (default: configured mapping file)")

	return cmd
}

func runMappingGenerate(ctx context.Context, output string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg)

	if output == "" {
		output = cfg.Project.MappingFile
	}

	project, err := config.LoadProject(cfg.Project.File)
	if err != nil {
		return fmt.Errorf("loading project file: %w", err)
	}

	git := newGit(cfg)

	registry, err := repos.Load(cfg.Project.Root, git)
	if err != nil {
		return fmt.Errorf("loading repositories: %w", err)
	}

	book := addrbook.New(cfg.Project.Root, project.AddressFiles, git, logger)
	idents, err := book.Load()
	if err != nil {
		return err
	}

	client := newExplorerClient(cfg)
	resolver := resolve.New(registry, git, project, cfg.Build.DependencyDir, logger)

	mapping := contracts.Mapping{}
	var unverified, unresolved []string

	for _, ident := range idents {
		sc, err := client.GetSmartContract(ctx, ident.Address)
		if errors.Is(err, explorer.ErrNotFound) {
			logger.Info("no verified source, skipping", "name", ident.Name, "address", ident.Address)
			unverified = append(unverified, ident.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("fetching verified source for %s: %w", ident.Name, err)
		}

		target, err := resolver.Resolve(ctx, ident, hintFromContract(sc))
		if errors.Is(err, contracts.ErrNoMapping) {
			logger.Warn("no repository match", "name", ident.Name, "address", ident.Address)
			unresolved = append(unresolved, ident.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving %s: %w", ident.Name, err)
		}

		mapping[ident.Name] = *target
	}

	if err := mapping.Save(output); err != nil {
		return err
	}

	fmt.Printf("✅ Mapped %d contract(s) to %s\n", len(mapping), output)
	if len(unverified) > 0 {
		fmt.Printf("   Skipped (no verified source): %s\n", strings.Join(unverified, ", "))
	}
	if len(unresolved) > 0 {
		fmt.Printf("⚠️  Unresolved: %s\n", strings.Join(unresolved, ", "))
	}
	return nil
}

// hintFromContract converts an explorer verified-source record into resolver
// hints. The artifact name comes from the verified file's stem, which matches
// the Foundry artifact layout better than the explorer's display name.
func hintFromContract(sc *explorer.SmartContract) resolve.Hint {
	hint := resolve.Hint{
		FilePath:   sc.FilePath,
		VerifiedAt: sc.VerifiedAt,
		Settings: contracts.Settings{
			CompilerVersion:     sc.CompilerVersion,
			OptimizationEnabled: sc.OptimizationEnabled,
			OptimizationRuns:    sc.OptimizationRuns,
			EVMVersion:          sc.EVMVersion,
		},
	}
	if sc.FilePath != "" {
		hint.ArtifactName = strings.TrimSuffix(filepath.Base(sc.FilePath), ".sol")
	} else {
		hint.ArtifactName = sc.Name
	}
	if sc.CompilerSettings.ViaIR {
		viaIR := true
		hint.Settings.ViaIR = &viaIR
	}
	return hint
}
