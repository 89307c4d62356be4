// Command charsheet manages tabletop character sheets stored in a record
// store, with an interactive editor that autosaves after a quiet period.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"charsheet/internal/config"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	verbose     bool
	metricsAddr string
	traceFile   string
	logFile     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "charsheet",
		Short: "Create, edit and export character sheets",
		Long: `charsheet keeps character sheets in a record store (sqlite by default,
or memory, postgres, mongo) and exports them as PDF or Markdown documents.

Run "charsheet edit <id>" for the interactive editor. Edits are saved
automatically once no change has been made for the configured quiet period.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "charsheet.yaml", "YAML configuration file (missing file is ignored)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while editing")
	pf.StringVar(&flags.traceFile, "trace-file", "", "Append JSON trace spans to this file")
	pf.StringVar(&flags.logFile, "log-file", "", "Write logs to this file instead of stderr")

	root.AddCommand(
		newListCmd(flags),
		newNewCmd(flags),
		newShowCmd(flags),
		newDeleteCmd(flags),
		newExportCmd(flags),
		newExportsCmd(flags),
		newApplyCmd(flags),
		newEditCmd(flags),
	)
	return root
}

// buildLogger follows the configured level and format. Interactive sessions
// without a log file get a no-op logger so output does not tear the screen.
func buildLogger(cfg config.LogConfig, flags *globalFlags, interactive bool) (*zap.Logger, error) {
	if interactive && flags.logFile == "" {
		return zap.NewNop(), nil
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	if flags.verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if flags.logFile != "" {
		zcfg.OutputPaths = []string{flags.logFile}
		zcfg.ErrorOutputPaths = []string{flags.logFile}
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
