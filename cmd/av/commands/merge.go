package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"arcvault/pkg/exporter"
	"arcvault/pkg/loader"

	"github.com/spf13/cobra"
)

var (
	mergeOutput        string
	mergeHierarchyOnly bool
	mergeExt           string
)

var mergeCmd = &cobra.Command{
	Use:   "merge [source...]",
	Short: "Load many archives in parallel and merge them into one tree",
	Long: `Each source is an .arc file or a directory searched recursively for .arc files.
Sources are applied in the given order; on a name conflict the file with the
greater full path wins. With -o the merged tree is written as a new archive.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := context.Background()
		out := cmd.OutOrStdout()

		// 1. 每个参数是一个来源组，保持命令行顺序
		sources := make([][]string, len(args))
		for i, a := range args {
			sources[i] = []string{a}
		}
		l, err := AV.NewLoader(ctx, sources, mergeHierarchyOnly)
		if err != nil {
			return err
		}

		// 2. 并行加载
		res, err := l.Load(ctx)
		if err != nil {
			return fmt.Errorf("merge failed: %w", err)
		}
		fmt.Fprintf(out, "🔀 Loaded %d archives, %d files in %v", len(res.Archives), res.FS.FileCount(), res.Elapsed.Round(time.Millisecond))
		if res.FromCache {
			fmt.Fprint(out, " (hierarchy cache)")
		}
		fmt.Fprintln(out)

		failed := make([]string, 0, len(res.Failed))
		for p := range res.Failed {
			failed = append(failed, p)
		}
		slices.Sort(failed)
		for _, p := range failed {
			fmt.Fprintf(out, "⚠️  %s: %v\n", p, res.Failed[p])
		}

		// 3. 按扩展名列出文件及其来源
		if mergeExt != "" {
			for _, f := range loader.FilesWithExtension(res.FS, mergeExt) {
				src, _ := loader.ArchiveOf(f)
				fmt.Fprintf(out, "%s\t%s\n", f.Path(), src)
			}
		}

		// 4. 写出
		if mergeOutput == "" {
			exporter.PrintSummary(res.FS, out)
			return nil
		}
		if res.FromCache {
			return errors.New("hierarchy-only result has no file data, run without --hierarchy-only to write an archive")
		}
		if err := res.FS.SaveFile(mergeOutput); err != nil {
			return fmt.Errorf("failed to write %s: %w", mergeOutput, err)
		}
		fmt.Fprintf(out, "✅ Written %s\n", mergeOutput)
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "write the merged tree to this archive")
	mergeCmd.Flags().BoolVar(&mergeHierarchyOnly, "hierarchy-only", false, "rebuild only the directory skeleton from the hierarchy cache when it is valid")
	mergeCmd.Flags().StringVar(&mergeExt, "ext", "", "list merged files with this extension and their source archive")
	rootCmd.AddCommand(mergeCmd)
}
