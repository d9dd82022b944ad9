// Package cmd defines and implements the CLI commands for the pace executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/pace/internal/config"
	"github.com/JakeFAU/pace/internal/id/uuid"
	"github.com/JakeFAU/pace/internal/logging"
)

// envKeyType is the key for storing the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env carries the services every subcommand needs.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string
}

// newLogger is the logger factory. It's a variable so tests can capture logs.
var newLogger = logging.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "pace",
		Short: "Hierarchical progress reporting for concurrent work.",
		Long: `pace renders a live tree of nested stages reported by concurrent workers.
The demo subcommand runs a simulated build so the renderer, metrics and
status server can be tried without wiring pace into another program.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Config is loaded here so flags bound to viper are already parsed.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(v, cfgFile)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, e))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok && e != nil {
				e.logger.Sync() //nolint:errcheck // best-effort flush
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().Bool("dev-logs", true, "use the human-friendly development logger")
	cmd.PersistentFlags().String("log-level", "info", "minimum log level (debug, info, warn, error)")
	bindFlag(v, "logging.development", cmd.PersistentFlags().Lookup("dev-logs"))
	bindFlag(v, "logging.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newDemoCmd(v))

	return cmd
}

func loadEnv(v *viper.Viper, cfgFile string) (*env, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", zap.String("path", used))
	}
	return &env{cfg: cfg, logger: logger, runID: runID}, nil
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// bindFlag panics on failure, which only happens for a nil flag.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

// Execute is the main entry point. It cancels the command context on SIGINT or
// SIGTERM so in-flight work can unwind its stages.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "pace:", err)
		stop()
		os.Exit(1)
	}
}
