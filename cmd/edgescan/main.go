package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edgescan/internal/config"
	"github.com/kailas-cloud/edgescan/internal/logger"
)

var (
	configPaths []string
	envName     string
	logLevel    string
	logFile     string

	cfg config.Config
	log *zap.Logger
)

var (
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "edgescan",
	Short: "Surface inspection with a scanning probe",
	Long: `edgescan drives a probe over a surface on a motorized stage. It sweeps an
area for features, traces their edges, fits rectangles and crack segments,
and stores every run for later export.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return setup()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configPaths, "config", "c", nil, "config file, repeatable; later files override earlier ones")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "environment name (default $ENV or local)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append logs to this file")
}

func setup() error {
	_ = godotenv.Load()

	if envName == "" {
		envName = config.GetEnv()
	}

	var err error
	if len(configPaths) > 0 {
		cfg, err = config.LoadFiles(configPaths...)
	} else {
		cfg, err = config.LoadEnv(envName)
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
			cfg.ApplyDefaults()
			err = cfg.Validate()
		}
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err = logger.New(logger.Options{Env: envName, Level: level, File: logFile})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM so a scan stops the stage
// and keeps what it measured.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}
