package installer

import (
	"context"
	"fmt"

	"github.com/oshokin/modpack-installer/internal/config"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
	"github.com/oshokin/modpack-installer/internal/logger"
)

// Options are inputs accepted by the local install entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
	// Request names the sources and the destination.
	Request modpack.InstallRequest
	// Concurrency overrides the configured download limit when positive.
	Concurrency int
	// OnStatus optionally receives every status message after it is logged.
	OnStatus func(modpack.StatusMessage)
}

// Summary counts the download outcomes of a run.
type Summary struct {
	Verified   int
	Mismatched int
	Failed     int
}

// Run installs a pack on this machine and logs every status message.
func Run(ctx context.Context, opts *Options) (*Summary, error) {
	ctx = logger.WithName(ctx, "modpack-install")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}

	ctx = logger.WithKV(ctx, "pack", opts.Request.PackName)

	messages, err := NewFromConfig(cfg).Install(ctx, &opts.Request, func(message modpack.StatusMessage) {
		LogStatus(ctx, message)

		if opts.OnStatus != nil {
			opts.OnStatus(message)
		}
	})

	summary := Summarize(messages)

	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)

		return summary, fmt.Errorf("install %s: %w", opts.Request.PackName, err)
	}

	logger.InfoKV(ctx, "Install completed",
		"verified", summary.Verified,
		"mismatched", summary.Mismatched,
		"failed", summary.Failed)

	return summary, nil
}

// LogStatus writes a status message at a level matching its kind.
func LogStatus(ctx context.Context, message modpack.StatusMessage) {
	switch message.Kind {
	case modpack.KindDownloadFailed, modpack.KindHashMismatch:
		logger.WarnKV(ctx, message.String(), "kind", message.Kind.String())
	default:
		logger.InfoKV(ctx, message.String(), "kind", message.Kind.String())
	}
}

// Summarize counts the download outcomes among messages.
func Summarize(messages []modpack.StatusMessage) *Summary {
	summary := new(Summary)

	for _, message := range messages {
		switch message.Kind {
		case modpack.KindVerified:
			summary.Verified++
		case modpack.KindHashMismatch:
			summary.Mismatched++
		case modpack.KindDownloadFailed:
			summary.Failed++
		default:
		}
	}

	return summary
}
