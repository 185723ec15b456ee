// Command campaignlab runs the campaign decision lab and inspects the logs it writes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campaignlab.ai/internal/logging"
	"campaignlab.ai/internal/sim/tuning"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	logDir     string

	cfg    tuning.Tuning
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "campaignlab",
	Short: "Infer party decisions in a campaign simulation and record them as NDJSON",
	Long: `campaignlab observes every party of a simulated campaign once per sampling
interval, infers the decisions they commit to, tracks each decision until it
resolves, and appends decisions and outcomes to decisions.jsonl and
outcomes.jsonl.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = tuning.Resolve(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") || cfg.LogFormat == "" {
			cfg.LogFormat = logFormat
		}
		if cmd.Flags().Changed("dir") {
			cfg.LogDir = logDir
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to a campaignlab yaml config")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "console", "log format (console or json)")
	pf.StringVar(&logDir, "dir", "", "decision log directory (overrides the config)")

	rootCmd.AddCommand(runCmd, validateCmd, indexCmd, statsCmd, archiveCmd, watchCmd, replayCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
