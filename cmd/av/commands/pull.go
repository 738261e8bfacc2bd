package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var pullList bool

var pullCmd = &cobra.Command{
	Use:   "pull [key] [file]",
	Short: "Fetch an archive from the configured store",
	Long:  `Download the archive stored under key to file. With --list, print the keys starting with the given prefix instead.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if pullList {
			return cobra.MaximumNArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := context.Background()

		store, err := AV.Store(ctx)
		if err != nil {
			return err
		}

		// 1. 列出
		if pullList {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := store.List(ctx, prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		}

		// 2. 下载到临时文件再改名
		key, target := args[0], args[1]
		rc, err := store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("pull %s: %w", key, err)
		}
		defer rc.Close()

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		tmp, err := os.CreateTemp(filepath.Dir(target), ".av-pull-*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())

		n, err := io.Copy(tmp, rc)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("pull %s: %w", key, err)
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		if err := os.Rename(tmp.Name(), target); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "⬇️  Pulled %s -> %s (%d bytes)\n", key, target, n)
		return nil
	},
}

func init() {
	pullCmd.Flags().BoolVarP(&pullList, "list", "l", false, "list stored keys with the given prefix")
	rootCmd.AddCommand(pullCmd)
}
