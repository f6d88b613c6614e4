package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"autoclass-backend/internal/components/telemetry"
	"autoclass-backend/pkg/restyutil"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	dumpHttp   string

	config  Config
	tel     telemetry.API = telemetry.SlogAPI{}
	otelSdk telemetry.Telemetry
	// exchanges stays nil unless --dump-http is given
	exchanges restyutil.Output
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug logs.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "Path to the configuration file.")
	rootCmd.PersistentFlags().StringVar(&dumpHttp, "dump-http", "", "Write every upstream request and response into this directory.")
}

var rootCmd = &cobra.Command{
	Use:   "articulate",
	Short: "articulate resolves transfer course requirements between institutions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		otelSdk, err = telemetry.SetupFromEnv(cmd.Context(), "articulate")
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}

		config, err = loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		if dumpHttp != "" {
			exchanges, err = restyutil.NewFilesystemOutput(dumpHttp)
			if err != nil {
				return fmt.Errorf("dump directory: %w", err)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := otelSdk.Shutdown(context.Background())
		if err != nil {
			slog.Warn("shutdown telemetry", "err", err)
		}
	},
	SilenceUsage: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
