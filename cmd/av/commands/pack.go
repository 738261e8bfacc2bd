package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var (
	packOutput string
	packName   string
)

var packCmd = &cobra.Command{
	Use:   "pack [dir]",
	Short: "Pack a directory into an ARC archive",
	Long:  `Import every file under dir (loose-file pointers) and write a single .arc archive. Files matching archive.compress globs are stored compressed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		start := time.Now()
		src := args[0]

		// 1. 输出路径与根名
		out := packOutput
		if out == "" {
			out = filepath.Clean(src) + ".arc"
		}
		name := packName
		if name == "" {
			name = archiveName(out)
		}

		// 2. 导入磁盘目录
		fs := AV.NewFileSystem(name)
		if err := fs.LoadDirectory(src, nil); err != nil {
			return fmt.Errorf("failed to import %s: %w", src, err)
		}

		// 3. 写出归档
		if err := fs.SaveFile(out); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "📦 Packed %d files (%d dirs) into %s in %v\n",
			fs.FileCount(), len(fs.Directories()), out, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output archive (default <dir>.arc)")
	packCmd.Flags().StringVar(&packName, "name", "", "root name stored in the archive (default output file name)")
	rootCmd.AddCommand(packCmd)
}
