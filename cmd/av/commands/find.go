package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"arcvault/pkg/catalog"

	"github.com/spf13/cobra"
)

var (
	findExt      bool
	findArchives bool
	findLimit    int
)

var findCmd = &cobra.Command{
	Use:   "find [name]",
	Short: "Look up files in the catalog",
	Long:  `Find indexed files by exact name, or by extension with --ext. With --archives only the archives containing the name are printed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := context.Background()
		out := cmd.OutOrStdout()

		repo, db, err := AV.Catalog(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		// 1. 只要归档列表
		if findArchives {
			paths, err := repo.ArchivesFor(ctx, args[0])
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			return nil
		}

		// 2. 条目
		var entries []catalog.Entry
		if findExt {
			entries, err = repo.FindByExtension(ctx, args[0], findLimit)
		} else {
			entries, err = repo.FindByName(ctx, args[0])
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(out, "🔍 No match for %s\n", args[0])
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintf(tw, "ARCHIVE\tPATH\tSIZE\tRAW\n")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", e.ArchivePath, e.Path, e.Size, e.RawSize)
		}
		return tw.Flush()
	},
}

func init() {
	findCmd.Flags().BoolVar(&findExt, "ext", false, "treat the argument as a file extension")
	findCmd.Flags().BoolVar(&findArchives, "archives", false, "print only the archives that contain the name")
	findCmd.Flags().IntVar(&findLimit, "limit", 0, "maximum number of results with --ext (0 = no limit)")
	rootCmd.AddCommand(findCmd)
}
