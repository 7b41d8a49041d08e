package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/modpack-installer/internal/config"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
	"github.com/oshokin/modpack-installer/internal/fetcher"
	"github.com/oshokin/modpack-installer/internal/logger"
	"github.com/oshokin/modpack-installer/internal/manifest"
	"github.com/oshokin/modpack-installer/internal/overrides"
	"github.com/oshokin/modpack-installer/internal/service/common"
)

// DefaultFolderMode is applied to the pack folder and its parents.
const DefaultFolderMode os.FileMode = 0o755

// Installer runs installs. It is safe for concurrent use as long as the
// requests target different pack folders.
type Installer struct {
	// fetcher downloads single manifest entries.
	fetcher *fetcher.Fetcher
	// concurrency caps in-flight downloads, zero means one goroutine per entry.
	concurrency int
	// blockingProcesses must not be running when an install starts.
	blockingProcesses []string
	// findRunning reports which of the given executables are running.
	findRunning func(names []string) ([]string, error)
}

// Option configures an Installer.
type Option func(*Installer)

// WithFetcher replaces the default fetcher.
func WithFetcher(f *fetcher.Fetcher) Option {
	return func(i *Installer) {
		if f != nil {
			i.fetcher = f
		}
	}
}

// WithConcurrency caps the number of parallel downloads. Zero or less keeps
// one download per manifest entry.
func WithConcurrency(limit int) Option {
	return func(i *Installer) {
		i.concurrency = max(limit, 0)
	}
}

// WithBlockingProcesses refuses installs while any of the executables run.
func WithBlockingProcesses(names []string) Option {
	return func(i *Installer) {
		i.blockingProcesses = nil

		for _, name := range names {
			if name = strings.TrimSpace(name); name != "" {
				i.blockingProcesses = append(i.blockingProcesses, name)
			}
		}
	}
}

// New creates an Installer.
func New(opts ...Option) *Installer {
	i := &Installer{
		fetcher:     fetcher.New(),
		findRunning: common.FindRunningProcesses,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// NewFromConfig creates an Installer from loaded settings.
func NewFromConfig(cfg *config.Config) *Installer {
	return New(
		WithFetcher(fetcher.New(
			fetcher.WithUserAgent(cfg.UserAgent),
			fetcher.WithTimeout(cfg.DownloadTimeout),
		)),
		WithConcurrency(cfg.Concurrency),
		WithBlockingProcesses(cfg.BlockingProcesses),
	)
}

// Install performs one install run and returns every status message in the
// order it was reported. onStatus, when set, receives the same messages as
// they happen; calls are serialised.
//
// The run stops with an error when the request is invalid, the pack folder
// already exists, a blocking process runs, the overrides cannot be merged or
// the manifest cannot be read. Nothing is rolled back.
func (i *Installer) Install(
	ctx context.Context,
	req *modpack.InstallRequest,
	onStatus func(modpack.StatusMessage),
) ([]modpack.StatusMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	folder := req.DestinationFolder()
	ctx = logger.WithKV(ctx, "pack_folder", folder)

	if _, err := os.Lstat(folder); err == nil {
		return nil, fmt.Errorf("%s: %w", folder, modpack.ErrDestinationExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat destination folder: %w", err)
	}

	if err := i.ensureNotBusy(ctx); err != nil {
		return nil, err
	}

	rep := newReporter(onStatus)

	if err := os.MkdirAll(folder, DefaultFolderMode); err != nil {
		return rep.messages(), fmt.Errorf("create destination folder: %w", err)
	}

	rep.report(modpack.StatusMessage{Kind: modpack.KindFolderCreated, Path: folder})

	if pathExists(req.OverridesPath) {
		if err := i.mergeOverrides(ctx, req.OverridesPath, folder, rep); err != nil {
			return rep.messages(), err
		}
	}

	if pathExists(req.ManifestPath) {
		if err := i.downloadAll(ctx, req.ManifestPath, folder, rep); err != nil {
			return rep.messages(), err
		}
	}

	return rep.messages(), nil
}

// ensureNotBusy fails when a blocking process is running.
func (i *Installer) ensureNotBusy(ctx context.Context) error {
	if len(i.blockingProcesses) == 0 {
		return nil
	}

	running, err := i.findRunning(i.blockingProcesses)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	if len(running) > 0 {
		logger.WarnKV(ctx, "Refusing to install while processes run", "processes", running)

		return fmt.Errorf("%s: %w", strings.Join(running, ", "), modpack.ErrPackInUse)
	}

	return nil
}

// mergeOverrides copies the overrides tree into the pack folder and removes it.
func (i *Installer) mergeOverrides(ctx context.Context, source, folder string, rep *reporter) error {
	logger.DebugKV(ctx, "Merging overrides", "source", source)

	if err := overrides.Merge(source, folder, overrides.WithReporter(rep.report)); err != nil {
		return fmt.Errorf("%w: %w", modpack.ErrMergeFailed, err)
	}

	rep.report(modpack.StatusMessage{Kind: modpack.KindOverridesCopied, Path: folder})
	rep.report(modpack.StatusMessage{Kind: modpack.KindOverridesDeleted, Path: source})

	return nil
}

// downloadAll fetches every manifest entry, waits for all of them and removes the manifest.
func (i *Installer) downloadAll(ctx context.Context, manifestPath, folder string, rep *reporter) error {
	index, err := manifest.Load(manifestPath)
	if err != nil {
		return fmt.Errorf("%w: %w", modpack.ErrManifest, err)
	}

	entries := index.Entries()
	logger.InfoKV(ctx, "Downloading pack files", "files", len(entries), "concurrency", i.concurrency)

	var group errgroup.Group
	if i.concurrency > 0 {
		group.SetLimit(i.concurrency)
	}

	for _, entry := range entries {
		group.Go(func() error {
			rep.report(i.fetcher.Fetch(ctx, entry, folder))

			return nil
		})
	}

	// Tasks never fail, Wait is only the barrier.
	_ = group.Wait()

	if err = os.Remove(manifestPath); err != nil {
		return fmt.Errorf("remove manifest: %w", err)
	}

	rep.report(modpack.StatusMessage{Kind: modpack.KindManifestDeleted, Path: manifestPath})

	return nil
}

func pathExists(path string) bool {
	if path == "" {
		return false
	}

	_, err := os.Stat(path)

	return err == nil
}

// reporter collects status messages from concurrent producers.
type reporter struct {
	mu       sync.Mutex
	list     []modpack.StatusMessage
	onStatus func(modpack.StatusMessage)
}

func newReporter(onStatus func(modpack.StatusMessage)) *reporter {
	return &reporter{onStatus: onStatus}
}

func (r *reporter) report(message modpack.StatusMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.list = append(r.list, message)

	if r.onStatus != nil {
		r.onStatus(message)
	}
}

func (r *reporter) messages() []modpack.StatusMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]modpack.StatusMessage(nil), r.list...)
}
