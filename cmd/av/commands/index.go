package commands

import (
	"context"
	"fmt"

	"arcvault/pkg/hierarchy"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [archive...]",
	Short: "Record archive contents in the catalog",
	Long:  `Load each archive and store its file list in the catalog database, replacing any previous record for the same path.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := context.Background()

		repo, db, err := AV.Catalog(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		for _, p := range args {
			// 1. 读取 mtime 与内容
			modTime, err := hierarchy.ModTime(p)
			if err != nil {
				return err
			}
			fs, err := openArc(p)
			if err != nil {
				return err
			}

			// 2. 写入目录索引
			if err := repo.IndexArchive(ctx, p, fs, modTime); err != nil {
				return fmt.Errorf("index %s: %w", p, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗂️  Indexed %s (%d files)\n", p, fs.FileCount())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
