package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	api "github.com/oshokin/modpack-installer/internal/api/grpc/installer"
	"github.com/oshokin/modpack-installer/internal/config"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
	"github.com/oshokin/modpack-installer/internal/logger"
	"github.com/oshokin/modpack-installer/internal/manifest"
	"github.com/oshokin/modpack-installer/internal/service/client"
	"github.com/oshokin/modpack-installer/internal/service/installer"
	"github.com/oshokin/modpack-installer/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// request collects the install sources and destination from flags.
	request modpack.InstallRequest
	// concurrency overrides the configured download limit.
	concurrency int
	// remote runs the install on the install server instead of locally.
	remote bool
	// serverAddress overrides the configured install server address.
	serverAddress string
	// jsonOutput prints every status message to stdout as a JSON line.
	jsonOutput bool

	// rootCmd represents the base command for installing a pack.
	rootCmd = &cobra.Command{
		Use:   "modpack-install",
		Short: "Install a mod pack into a new instance folder.",
		Long: `Creates <dest>/<name>, merges the overrides folder into it and downloads
every file listed in the pack index, verifying SHA-1 and SHA-512 digests.

The overrides folder and the index are deleted once they have been applied.
The install is refused when the instance folder already exists or a process
listed in blocking_processes is running.

With --remote the install runs on the install server and the paths refer to
the server's filesystem.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var onStatus func(modpack.StatusMessage)
			if jsonOutput {
				// Stdout carries only JSON lines, logs move to stderr.
				ctx = logger.ToContext(ctx, logger.NewWithWriter(cmd.ErrOrStderr(), nil))
				onStatus = printJSON(cmd.OutOrStdout())
			}

			if remote {
				_, err := client.Run(ctx, &client.Options{
					ConfigPath:    configPath,
					ServerAddress: serverAddress,
					Request:       request,
					OnStatus:      onStatus,
				})

				return err
			}

			_, err := installer.Run(ctx, &installer.Options{
				ConfigPath:  configPath,
				Request:     request,
				Concurrency: concurrency,
				OnStatus:    onStatus,
			})

			return err
		},
	}
)

// printJSON returns a status callback writing one JSON document per line to w.
func printJSON(w io.Writer) func(modpack.StatusMessage) {
	return func(message modpack.StatusMessage) {
		data, err := api.StatusJSON(message)
		if err != nil {
			return
		}

		_, _ = fmt.Fprintln(w, string(data))
	}
}

// Execute runs the modpack-install CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&request.ManifestPath, "manifest", "m", manifest.DefaultFilename, "path to the pack index")
	flags.StringVarP(&request.OverridesPath, "overrides", "o", "overrides", "path to the overrides folder")
	flags.StringVarP(&request.DestinationRoot, "dest", "d", "", "folder receiving the instance folder")
	flags.StringVarP(&request.PackName, "name", "n", "", "name of the instance folder")
	flags.IntVarP(&concurrency, "concurrency", "j", 0, "maximum parallel downloads, 0 uses the configured value")
	flags.BoolVarP(&remote, "remote", "r", false, "run the install on the install server")
	flags.StringVarP(&serverAddress, "server", "s", "", "install server address, overrides configuration")
	flags.BoolVar(&jsonOutput, "json", false, "print status messages to stdout as JSON lines, logs go to stderr")

	_ = rootCmd.MarkFlagRequired("dest")
	_ = rootCmd.MarkFlagRequired("name")
}
