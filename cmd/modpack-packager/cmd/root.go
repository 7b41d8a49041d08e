package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/modpack-installer/internal/config"
	"github.com/oshokin/modpack-installer/internal/logger"
	"github.com/oshokin/modpack-installer/internal/manifest"
	"github.com/oshokin/modpack-installer/internal/service/packager"
	"github.com/oshokin/modpack-installer/internal/version"
)

var (
	// options are filled from flags and arguments.
	options packager.Options
	// logLevel is the minimum level of emitted log entries.
	logLevel string

	// rootCmd represents the base command for building a pack index.
	rootCmd = &cobra.Command{
		Use:   "modpack-packager <source-dir> <base-url>",
		Short: "Build a pack index from a folder of mod files.",
		Long: `Walks the source folder and writes a pack index listing every file with its
SHA-1 and SHA-512 digests, its size and its download URL.

Download URLs are the base URL joined with the path of the file inside the
source folder, so the folder must be uploaded to the base URL as is.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // Source folder and base URL.
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options.SourceDir = args[0]
			options.BaseURL = args[1]

			return packager.Run(ctx, &options)
		},
	}
)

// Execute runs the modpack-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&options.Output, "output", "o", manifest.DefaultFilename, "path of the index to write")
	flags.StringVarP(&options.Name, "name", "n", "", "pack name stored in the index")
	flags.StringVarP(&options.VersionID, "version-id", "v", "", "pack version stored in the index")
	flags.StringVarP(&options.PathPrefix, "prefix", "p", "mods", "folder prepended to every entry path")
	flags.StringVarP(&logLevel, "log-level", "l", config.DefaultLogLevel, "minimum log level")
}
