package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"arcvault/pkg/arc"

	"github.com/spf13/cobra"
)

var pushForce bool

var pushCmd = &cobra.Command{
	Use:   "push [archive] [key]",
	Short: "Publish an archive to the configured store",
	Long:  `Upload an .arc file to the archive store (disk or S3). The key defaults to the file name. Existing keys are skipped unless --force is set.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := context.Background()

		p := args[0]
		key := filepath.Base(p)
		if len(args) == 2 {
			key = args[1]
		}

		// 1. 只接受 ARC 归档
		ok, err := arc.DetectMagic(p)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", p, arc.ErrFormat)
		}

		store, err := AV.Store(ctx)
		if err != nil {
			return err
		}

		// 2. 已存在则跳过
		if !pushForce {
			exists, err := store.Has(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Already exists: %s\n", key)
				return nil
			}
		}

		// 3. 上传
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := store.Put(ctx, key, f); err != nil {
			return fmt.Errorf("push %s: %w", key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🚀 Pushed %s -> %s\n", p, key)
		return nil
	},
}

func init() {
	pushCmd.Flags().BoolVarP(&pushForce, "force", "f", false, "overwrite an existing key")
	rootCmd.AddCommand(pushCmd)
}
