package commands

import (
	"fmt"

	"arcvault/pkg/exporter"

	"github.com/spf13/cobra"
)

var catInfo bool

var catCmd = &cobra.Command{
	Use:   "cat [archive] [path]",
	Short: "Print the content of a file inside an archive",
	Long:  `Write the decompressed content of the file at path to stdout. With --info, print its pointer metadata instead.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}

		fs, err := openArc(args[0])
		if err != nil {
			return err
		}
		f, err := fs.FindFile(args[1], nil)
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}

		if catInfo {
			exporter.PrintFile(f, cmd.OutOrStdout())
			return nil
		}
		return exporter.NewExporter(AV.Log).ExportFile(f, cmd.OutOrStdout())
	},
}

func init() {
	catCmd.Flags().BoolVarP(&catInfo, "info", "i", false, "show file metadata instead of content")
	rootCmd.AddCommand(catCmd)
}
