package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/veriforge/internal/addrbook"
	"github.com/pendergraft/veriforge/internal/artifacts"
	"github.com/pendergraft/veriforge/internal/build"
	"github.com/pendergraft/veriforge/internal/config"
	"github.com/pendergraft/veriforge/internal/contracts"
	"github.com/pendergraft/veriforge/internal/observability/metrics"
	"github.com/pendergraft/veriforge/internal/repos"
	"github.com/pendergraft/veriforge/internal/storage"
	"github.com/pendergraft/veriforge/internal/verify"
)

func createVerifyCmd() *cobra.Command {
	var all bool
	var file string
	var address string
	var name string
	var changedFile string
	var output string
	var skipUnmapped bool
	var strict bool
	var store bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify deployed bytecode against source builds",
		Long: `Verify resolves each deployed contract to a repository and commit,
rebuilds it with Foundry, and compares the on-chain bytecode against the
compiled artifact.

EXAMPLES:
  # Verify every contract in the project's address files
  veriforge verify --all

  # Verify a single address file
  veriforge verify --file addresses/mainnet.json

  # Verify one contract
  veriforge verify --name EVault --address 0x1234...

  # Verify only the contracts a changed-addresses diff flagged
  veriforge verify --changed-file changed.json --skip-unmapped

  # Persist the run report
  veriforge verify --all --output report.json --store
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), verifyArgs{
				all:          all,
				file:         file,
				address:      address,
				name:         name,
				changedFile:  changedFile,
				output:       output,
				skipUnmapped: skipUnmapped,
				strict:       strict,
				store:        store,
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "verify every contract in the project's address files")
	cmd.Flags().StringVar(&file, "file", "", "verify the contracts in a single address file")
	cmd.Flags().StringVar(&address, "address", "", "verify a single deployed address (requires --name)")
	cmd.Flags().StringVar(&name, "name", "", "contract name for --address")
	cmd.Flags().StringVar(&changedFile, "changed-file", "", "verify the contracts listed in a changed-addresses file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the JSON report to a file")
	cmd.Flags().BoolVar(&skipUnmapped, "skip-unmapped", false, "record unmapped contracts as skipped instead of failed")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort the run before building when any contract is unmapped")
	cmd.Flags().BoolVar(&store, "store", false, "persist the run in history storage")

	return cmd
}

type verifyArgs struct {
	all          bool
	file         string
	address      string
	name         string
	changedFile  string
	output       string
	skipUnmapped bool
	strict       bool
	store        bool
}

func runVerify(ctx context.Context, args verifyArgs) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg)
	metrics.Init(cfg.Metrics.Enabled, "veriforge")

	git := newGit(cfg)

	idents, err := collectIdentities(cfg, git, logger, args)
	if err != nil {
		return err
	}
	if len(idents) == 0 {
		fmt.Println("Nothing to verify")
		return nil
	}

	mapping, err := contracts.LoadMapping(cfg.Project.MappingFile)
	if err != nil {
		return fmt.Errorf("loading mapping: %w", err)
	}

	registry, err := repos.Load(cfg.Project.Root, git)
	if err != nil {
		return fmt.Errorf("loading repositories: %w", err)
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	runner := build.NewRunner(time.Duration(cfg.Build.TimeoutSeconds) * time.Second)
	orchestrator := build.New(registry, runner, cfg.Build, logger)

	driver := verify.New(
		mapping,
		orchestratorAdapter{o: orchestrator},
		source,
		verify.LocatorFunc(artifacts.Locate),
		logger,
		verify.Options{SkipUnmapped: args.skipUnmapped, Strict: args.strict},
	)

	fmt.Printf("🔍 Verifying %d contract(s)\n\n", len(idents))

	rep, err := driver.VerifyAll(ctx, idents)
	if err != nil {
		return err
	}

	metrics.RecordRun(rep)
	rep.PrintSummary(os.Stdout)

	if args.output != "" {
		if err := rep.Save(args.output); err != nil {
			return err
		}
		fmt.Printf("\n📄 Report written to %s\n", args.output)
	}

	if args.store {
		st, err := storage.New(cfg.Storage, logger)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		if err := st.SaveRun(ctx, rep); err != nil {
			return fmt.Errorf("storing run: %w", err)
		}
		fmt.Printf("💾 Run %s stored\n", rep.RunID)
	}

	if !rep.Ok() {
		return fmt.Errorf("%d contract(s) failed verification", rep.Summary.Failed)
	}
	return nil
}

func collectIdentities(cfg *config.Config, git repos.Git, logger *slog.Logger, args verifyArgs) ([]contracts.Identity, error) {
	switch {
	case args.address != "" || args.name != "":
		if args.address == "" || args.name == "" {
			return nil, fmt.Errorf("--address and --name must be given together")
		}
		return []contracts.Identity{contracts.NewIdentity(args.name, args.address)}, nil

	case args.changedFile != "":
		return addrbook.LoadChanged(args.changedFile)

	case args.file != "":
		book := addrbook.New(cfg.Project.Root, []string{args.file}, git, logger)
		return book.Load()

	case args.all:
		project, err := config.LoadProject(cfg.Project.File)
		if err != nil {
			return nil, fmt.Errorf("loading project file: %w", err)
		}
		book := addrbook.New(cfg.Project.Root, project.AddressFiles, git, logger)
		return book.Load()

	default:
		return nil, fmt.Errorf("one of --all, --file, --address, or --changed-file is required")
	}
}
