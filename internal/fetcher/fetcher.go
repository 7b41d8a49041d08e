package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/modpack-installer/internal/checksum"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
	"github.com/oshokin/modpack-installer/internal/logger"
	"github.com/oshokin/modpack-installer/internal/version"
)

const (
	// DefaultFileMode is applied to downloaded files.
	DefaultFileMode os.FileMode = 0o644
	// DefaultDirMode is applied to created parent folders.
	DefaultDirMode os.FileMode = 0o755
)

// Fetcher downloads files over HTTP. It is safe for concurrent use.
type Fetcher struct {
	// client performs the GET requests.
	client *http.Client
	// userAgent is sent with every request.
	userAgent string
	// timeout bounds one download including the body, zero means no limit.
	timeout time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		if userAgent = strings.TrimSpace(userAgent); userAgent != "" {
			f.userAgent = userAgent
		}
	}
}

// WithTimeout limits every download to the given duration.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    http.DefaultClient,
		userAgent: version.UserAgent(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch resolves entry inside folder and downloads it.
func (f *Fetcher) Fetch(ctx context.Context, entry modpack.ManifestEntry, folder string) modpack.StatusMessage {
	target, err := entry.Target(folder)
	if err != nil {
		return modpack.DownloadFailed(filepath.Join(folder, entry.RelativePath()), err)
	}

	return f.FetchAndVerify(ctx, entry.URL(), target, entry.Expected)
}

// FetchAndVerify downloads rawURL to destination and compares the written file
// with the expected digests. A file with mismatching digests is kept on disk.
func (f *Fetcher) FetchAndVerify(
	ctx context.Context,
	rawURL string,
	destination string,
	expected checksum.Digests,
) modpack.StatusMessage {
	if strings.TrimSpace(rawURL) == "" {
		return modpack.DownloadFailed(destination, modpack.ErrNoDownloadURL)
	}

	if err := os.MkdirAll(filepath.Dir(destination), DefaultDirMode); err != nil {
		return modpack.DownloadFailed(destination, fmt.Errorf("%w: %w", modpack.ErrWrite, err))
	}

	if err := f.download(ctx, rawURL, destination); err != nil {
		return modpack.DownloadFailed(destination, err)
	}

	logger.DebugKV(ctx, "Downloaded file", "path", destination, "url", rawURL)

	computed, err := checksum.ComputeDigests(destination)
	if err != nil {
		return modpack.DownloadFailed(destination, fmt.Errorf("%w: %w", modpack.ErrHashRead, err))
	}

	checks := checksum.Verify(computed, expected)
	if len(checksum.Mismatched(checks)) > 0 {
		return modpack.HashMismatch(destination, checks)
	}

	return modpack.Verified(destination, checks)
}

// download performs the GET request and persists a 200 response body.
func (f *Fetcher) download(ctx context.Context, rawURL, destination string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", modpack.ErrTransport, err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	response, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", modpack.ErrTransport, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", rawURL, response.Status, modpack.ErrBadHTTPStatus)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", modpack.ErrTransport, err)
	}

	if err = persist(data, destination); err != nil {
		return fmt.Errorf("%w: %w", modpack.ErrWrite, err)
	}

	return nil
}

// persist swaps destination for data in one rename, so readers never see a
// half-written file. go-update needs an existing target, a placeholder is
// created for new files and removed again when the swap fails.
func persist(data []byte, destination string) error {
	created := false

	if _, err := os.Lstat(destination); errors.Is(err, fs.ErrNotExist) {
		placeholder, createErr := os.OpenFile(filepath.Clean(destination), os.O_CREATE|os.O_WRONLY|os.O_EXCL, DefaultFileMode)
		if createErr != nil {
			return createErr
		}

		if createErr = placeholder.Close(); createErr != nil {
			return createErr
		}

		created = true
	}

	options := goupdate.Options{
		TargetPath: destination,
		TargetMode: DefaultFileMode,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		_ = os.Remove(stagingPath(destination))

		if created {
			_ = os.Remove(destination)
		}

		return err
	}

	return nil
}

// stagingPath is where go-update writes the new contents before the swap.
func stagingPath(destination string) string {
	return filepath.Join(filepath.Dir(destination), "."+filepath.Base(destination)+".new")
}
