package commands

import (
	"fmt"

	"arcvault/pkg/exporter"

	"github.com/spf13/cobra"
)

var lsSummary bool

var lsCmd = &cobra.Command{
	Use:   "ls [archive...]",
	Short: "List the contents of ARC archives",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		for i, p := range args {
			fs, err := openArc(p)
			if err != nil {
				return err
			}
			if len(args) > 1 {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s:\n", p)
			}
			if lsSummary {
				exporter.PrintSummary(fs, out)
				continue
			}
			if err := exporter.PrintTree(fs.Root(), out); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	lsCmd.Flags().BoolVarP(&lsSummary, "summary", "s", false, "print counts instead of the full listing")
	rootCmd.AddCommand(lsCmd)
}
