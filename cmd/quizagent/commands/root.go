package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"quizagent/internal/components/telemetry"
	"quizagent/internal/config"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool

	cfg     config.Config
	otelSdk telemetry.Telemetry
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", config.DefaultFilename, "The configuration file, searched for in parent directories too.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

var rootCmd = &cobra.Command{
	Use:           "quizagent",
	Short:         "quizagent solves chains of data quizzes and submits their answers.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*verbose)

		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		otelSdk, err = telemetry.Setup(cmd.Context(), "quizagent", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := otelSdk.Shutdown(context.Background())
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
