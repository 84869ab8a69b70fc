package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/scalar-upgrader/internal/service/packager"
	"github.com/oshokin/scalar-upgrader/internal/version"
)

var (
	// folder is the local update folder.
	folder string
	// releaseVersion is the version being published.
	releaseVersion string
	// ring is the channel the release is published on.
	ring string
	// keyPath to the signer private key.
	keyPath string
	// signer is the identity printed for the trusted_signers setting.
	signer string

	// rootCmd represents the base command for publishing releases.
	rootCmd = &cobra.Command{
		Use:   "scalar-packager",
		Short: "Publish signed Scalar releases for the upgrader",
	}

	// publishCmd adds a release to the manifest of the update folder.
	publishCmd = &cobra.Command{
		Use:   "publish [installer...]",
		Short: "Sign installers and add them as a release to the manifest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				Folder:  folder,
				Version: releaseVersion,
				Ring:    ring,
				KeyPath: keyPath,
				Files:   args,
			}

			return packager.Run(ctx, options)
		},
	}

	// keygenCmd creates a signer key pair.
	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Create an ed25519 signer key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			publicKey, err := packager.Keygen(cmd.Context(), keyPath)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "trusted_signers:\n  %s: %s\n", signer, publicKey)

			return nil
		},
	}
)

// Execute runs the scalar-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&keyPath, "key", "k", "signer.key", "path to the signer private key")

	publishCmd.Flags().StringVarP(&folder, "folder", "f", "updates", "local update folder served to the upgraders")
	publishCmd.Flags().StringVarP(&releaseVersion, "version", "v", "", "semantic version of the release")
	publishCmd.Flags().StringVarP(&ring, "ring", "r", "slow", "ring to publish the release on: fast or slow")
	_ = publishCmd.MarkFlagRequired("version")

	keygenCmd.Flags().StringVarP(&signer, "signer", "s", "scalar", "signer identity of the key")

	rootCmd.AddCommand(publishCmd, keygenCmd)
}
