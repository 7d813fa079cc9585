// Package main implements the noesis CLI - an attention-driven cognitive
// reasoning engine over a semantic network working memory.
//
// Commands:
//   - run    - load the knowledge base and run cognition cycles
//   - kb     - list and check knowledge files
//   - logic  - ad-hoc Datalog queries over working memory
//   - status - engine configuration and memory sizes
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"noesis/internal/config"
	"noesis/internal/logging"
)

var (
	// global flags
	verbose    bool
	workspace  string
	configPath string

	console *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "noesis",
	Short: "Attention-driven cognitive reasoning engine",
	Long: `noesis maintains a semantic network working memory, infers a halo of
expectations from declarative rules, and pursues goals by expanding typed
directives with procedural operators under an attention scheduler.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			workspace = wd
		}
		if err := logging.Initialize(workspace); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		console = newConsole(verbose)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		_ = console.Sync()
	},
}

// newConsole builds the operator-facing zap logger.
func newConsole(verbose bool) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.Kitchen)
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core).Sugar()
}

// loadConfig reads the YAML config honoring the --config flag.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = "noesis.yaml"
	}
	return config.Load(path)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose console output")
	rootCmd.PersistentFlags().StringVar(&workspace, "workspace", "", "workspace directory (default: cwd)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: noesis.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(logicCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
