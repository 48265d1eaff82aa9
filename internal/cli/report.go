package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/veriforge/internal/report"
)

func createReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Print the summary of a saved run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := report.Load(args[0])
			if err != nil {
				return err
			}
			rep.PrintSummary(os.Stdout)
			return nil
		},
	}

	return cmd
}
