package commands

import (
	"fmt"
	"os"

	"arcvault/pkg/app"
	"arcvault/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	AV *app.App
)

var rootCmd = &cobra.Command{
	Use:   "av",
	Short: "arcvault: ARC archive toolkit",
	Long:  `Pack, inspect, merge and publish ARC archives.`,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		AV, err = app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize arcvault: %w", err)
		}
		if used := config.Used(); used != "" {
			AV.Log.Debug("config loaded", "file", used)
		}
		return nil
	},
	SilenceUsage: true,
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// 1. 全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.av/config.yaml)")

	// 2. 绑定到 Viper 的参数：yaml / 环境变量 / 命令行三者皆可
	rootCmd.PersistentFlags().Bool("keep-duplicates", false, "keep same-named files under different paths")
	rootCmd.PersistentFlags().String("log-level", "", "trace, debug, info, warn or error")
	for key, flag := range map[string]string{
		"archive.keep_duplicates": "keep-duplicates",
		"log.level":               "log-level",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
