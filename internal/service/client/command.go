package client

import (
	"context"
	"fmt"

	"github.com/oshokin/modpack-installer/internal/config"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
	"github.com/oshokin/modpack-installer/internal/logger"
	"github.com/oshokin/modpack-installer/internal/service/common"
	"github.com/oshokin/modpack-installer/internal/service/installer"
)

// Options configures a remote install.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string

	// Request names the sources and the destination on the server's filesystem.
	Request modpack.InstallRequest
	// OnStatus optionally receives every status message after it is logged.
	OnStatus func(modpack.StatusMessage)
}

// Run asks the install server to install a pack and logs the streamed status messages.
func Run(ctx context.Context, opts *Options) (*installer.Summary, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "modpack-install")

	// Load settings from configuration file.
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for the server's audit log.
	actor, err := common.DetectActor()
	if err != nil {
		return nil, err
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	if err = client.CheckHealth(ctx); err != nil {
		return nil, err
	}

	ctx = logger.WithKV(ctx, "pack", opts.Request.PackName)
	logger.InfoKV(ctx, "Requesting remote install", "server_address", serverAddress, "actor", actor.String())

	messages, err := client.Install(common.WithOutgoingActor(ctx, actor), &opts.Request,
		func(message modpack.StatusMessage) {
			installer.LogStatus(ctx, message)

			if opts.OnStatus != nil {
				opts.OnStatus(message)
			}
		})

	summary := installer.Summarize(messages)

	if err != nil {
		logger.ErrorKV(ctx, "Remote install failed", "error", err)

		return summary, fmt.Errorf("install %s on %s: %w", opts.Request.PackName, serverAddress, err)
	}

	logger.InfoKV(ctx, "Remote install completed",
		"verified", summary.Verified,
		"mismatched", summary.Mismatched,
		"failed", summary.Failed)

	return summary, nil
}
