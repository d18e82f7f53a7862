// Command xtrack emits test events through any registered relay and runs a local
// collector that prints what it receives.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"

	_ "github.com/trickstertwo/xtrack/adapter/httprelay"
	_ "github.com/trickstertwo/xtrack/adapter/kafkarelay"
	_ "github.com/trickstertwo/xtrack/adapter/memory"
	_ "github.com/trickstertwo/xtrack/adapter/redisstream"
	_ "github.com/trickstertwo/xtrack/adapter/udprelay"
)

var (
	configPath string
	logDebug   bool
	logConsole bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xtrack",
		Short:         "Emit and collect xtrack telemetry events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "xtrack.yaml", "YAML config file (missing file means defaults)")
	root.PersistentFlags().BoolVar(&logDebug, "debug", false, "log at debug level")
	root.PersistentFlags().BoolVar(&logConsole, "console", false, "human-readable log output")

	root.AddCommand(newEmitCmd(), newCollectCmd(), newRelaysCmd())
	return root
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return Config{}, err
	}
	if cmd.Flags().Changed("debug") {
		cfg.LogDebug = logDebug
	}
	if cmd.Flags().Changed("console") {
		cfg.LogConsole = logConsole
	}
	return cfg, nil
}

func newLogger(cfg Config, component string) *xlog.Logger {
	zc := zerolog.Config{
		Console:           cfg.LogConsole,
		ConsoleTimeFormat: time.RFC3339Nano,
		Caller:            cfg.LogDebug,
		CallerSkip:        5,
	}
	if cfg.LogDebug {
		zc.MinLevel = xlog.LevelDebug
	}
	return zerolog.Use(zc).
		With(xlog.Str("app", "xtrack")).
		With(xlog.Str("component", component))
}
