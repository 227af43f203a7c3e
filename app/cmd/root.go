package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile string
	verbose bool

	globalCfg *Config
	globalLog *zap.Logger
)

// Execute is the entry point for the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd wires the cobra tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planform",
		Short:         "Task planning and execution platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				cfgFile = DefaultConfigPath()
			}
			cfg, err := LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			globalCfg = cfg

			logCfg := zap.NewProductionConfig()
			if cfg.Logging.Level != "" {
				level, err := zapcore.ParseLevel(cfg.Logging.Level)
				if err != nil {
					return err
				}
				logCfg.Level = zap.NewAtomicLevelAt(level)
			}
			if verbose {
				logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			log, err := logCfg.Build()
			if err != nil {
				return err
			}
			globalLog = log
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to planform config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		newServeCmd(),
		newProjectsCmd(),
		newChatCmd(),
		newVersionCmd(),
	)
	return root
}
