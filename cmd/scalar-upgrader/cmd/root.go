package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/scalar-upgrader/internal/config"
	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/logger"
	"github.com/oshokin/scalar-upgrader/internal/service/upgrader"
	"github.com/oshokin/scalar-upgrader/internal/version"
)

// defaultLogLevel keeps diagnostics quiet unless requested.
const defaultLogLevel = "warn"

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel of the diagnostic log written to stderr.
	logLevel string
	// confirm runs the installation instead of only checking.
	confirm bool
	// dryRun skips installer execution.
	dryRun bool

	// errUnknownLogLevel is returned for an unsupported --log-level value.
	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd represents the base command of the upgrader.
	rootCmd = &cobra.Command{
		Use:           "scalar-upgrader",
		Short:         "Keep Scalar and Git up to date",
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}

	// upgradeCmd checks for a newer release and installs it when confirmed.
	upgradeCmd = &cobra.Command{
		Use:          "upgrade",
		Short:        "Check for a newer release and install it with --confirm",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &upgrader.Options{
				ConfigPath: configPath,
				Confirm:    confirm,
				DryRun:     dryRun,
			}

			return upgrader.Run(ctx, options)
		},
	}

	// statusCmd prints the release found by the last check.
	statusCmd = &cobra.Command{
		Use:          "status",
		Short:        "Show the release found by the last upgrade check",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return upgrader.Status(cmd.Context(), &upgrader.Options{ConfigPath: configPath})
		},
	}
)

// Execute runs the scalar-upgrader CLI.
// A failed upgrade exits with the generic error code, other errors with 1.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if code := exitCode(rootCmd.ErrOrStderr(), rootCmd.Execute()); code != 0 {
		os.Exit(code)
	}
}

// exitCode maps the result of a command to the process exit status.
// The orchestrator has already reported a failed upgrade, other errors are printed to w.
func exitCode(w io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, upgrade.ErrUpgradeFailed):
		return int(upgrade.ReturnCodeGenericError)
	default:
		_, _ = fmt.Fprintln(w, "Error:", err)

		return 1
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "diagnostic log level: debug, info, warn or error")

	upgradeCmd.Flags().BoolVar(&confirm, "confirm", false, "download and install the new release")
	upgradeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run every stage except the installers")

	rootCmd.AddCommand(upgradeCmd, statusCmd)
}
