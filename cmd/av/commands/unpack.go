package commands

import (
	"context"
	"fmt"
	"time"

	"arcvault/pkg/arc"
	"arcvault/pkg/exporter"

	"github.com/spf13/cobra"
)

var unpackPath string

var unpackCmd = &cobra.Command{
	Use:   "unpack [archive] [dir]",
	Short: "Extract an ARC archive to disk",
	Long:  `Restore the archive's directory tree (or the subtree given by --path) into dir, decompressing file contents.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := context.Background()
		start := time.Now()

		// 1. 加载归档
		fs, err := openArc(args[0])
		if err != nil {
			return err
		}

		// 2. 定位起点
		dir := fs.Root()
		if unpackPath != "" && unpackPath != "/" {
			dir, err = fs.FindDirectory(unpackPath, nil)
			if err != nil {
				return fmt.Errorf("path %s: %w", unpackPath, err)
			}
		}

		// 3. 还原
		var count int
		var total int64
		exp := exporter.NewExporter(AV.Log)
		err = exp.RestoreTree(ctx, dir, args[1], func(path string, f *arc.File, size int64) {
			count++
			total += size
		})
		if err != nil {
			return fmt.Errorf("unpack failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "📂 Extracted %d files (%d bytes) to %s in %v\n",
			count, total, args[1], time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	unpackCmd.Flags().StringVar(&unpackPath, "path", "", "only extract this directory (e.g. /textures)")
	rootCmd.AddCommand(unpackCmd)
}
