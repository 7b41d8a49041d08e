package packager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/modpack-installer/internal/checksum"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
	"github.com/oshokin/modpack-installer/internal/logger"
	"github.com/oshokin/modpack-installer/internal/manifest"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// SourceDir holds the files to publish.
	SourceDir string
	// BaseURL is where the files of SourceDir will be uploaded.
	BaseURL string
	// Output is the index file to write, defaults to manifest.DefaultFilename.
	Output string
	// Name is the pack name stored in the index.
	Name string
	// VersionID is the pack version stored in the index.
	VersionID string
	// PathPrefix is prepended to every entry path, defaults to modpack.DefaultEntryPath.
	PathPrefix string
}

// packager prepares the pack index for distribution.
// It is unexported, callers should use Run.
type packager struct {
	// opts are the validated options.
	opts Options
	// baseURL is the parsed Options.BaseURL.
	baseURL *url.URL
	// index is the index being built.
	index *manifest.Index
}

var (
	// errSourceRequired is returned when no source directory is given.
	errSourceRequired = errors.New("source directory must be provided")
	// errBaseURLRequired is returned when no base URL is given.
	errBaseURLRequired = errors.New("base URL must be provided")
	// errBaseURLScheme is returned for base URLs that are not http or https.
	errBaseURLScheme = errors.New("base URL must use http or https")
	// errNoFiles is returned when the source directory has no regular files.
	errNoFiles = errors.New("source directory has no files")
)

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "modpack-packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	if err = pkg.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// newPackager validates the options and fills defaults.
func newPackager(opts *Options) (*packager, error) {
	if opts.SourceDir == "" {
		return nil, errSourceRequired
	}

	if opts.BaseURL == "" {
		return nil, errBaseURLRequired
	}

	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("%s: %w", opts.BaseURL, errBaseURLScheme)
	}

	pkg := &packager{
		opts:    *opts,
		baseURL: baseURL,
		index: &manifest.Index{
			FormatVersion: manifest.FormatVersion,
			Game:          manifest.DefaultGame,
			VersionID:     opts.VersionID,
			Name:          opts.Name,
		},
	}

	if pkg.opts.Output == "" {
		pkg.opts.Output = manifest.DefaultFilename
	}

	if pkg.opts.PathPrefix == "" {
		pkg.opts.PathPrefix = modpack.DefaultEntryPath
	}

	return pkg, nil
}

// Run populates and writes the index to disk.
func (p *packager) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Preparing pack index", "source_dir", p.opts.SourceDir)

	if err := p.fillIndex(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saving pack index", "path", p.opts.Output, "files", len(p.index.Files))

	if err := manifest.Save(p.opts.Output, p.index); err != nil {
		return err
	}

	p.printNextSteps(ctx)

	return nil
}

// fillIndex adds one entry per regular file of the source directory, in lexical order.
func (p *packager) fillIndex(ctx context.Context) error {
	output, err := filepath.Abs(p.opts.Output)
	if err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}

	err = filepath.WalkDir(p.opts.SourceDir, func(filePath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		if abs, absErr := filepath.Abs(filePath); absErr == nil && abs == output {
			return nil
		}

		rel, err := filepath.Rel(p.opts.SourceDir, filePath)
		if err != nil {
			return err
		}

		file, err := p.describe(filePath, filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		logger.DebugKV(ctx, "Added file", "path", file.Path, "size", file.FileSize)
		p.index.Files = append(p.index.Files, file)

		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", p.opts.SourceDir, err)
	}

	if len(p.index.Files) == 0 {
		return fmt.Errorf("%s: %w", p.opts.SourceDir, errNoFiles)
	}

	return nil
}

// describe builds the index entry of one file. rel uses forward slashes.
func (p *packager) describe(filePath, rel string) (manifest.File, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return manifest.File{}, fmt.Errorf("stat %s: %w", filePath, err)
	}

	digests, err := checksum.ComputeDigests(filePath)
	if err != nil {
		return manifest.File{}, err
	}

	return manifest.File{
		Path: path.Join(p.opts.PathPrefix, rel),
		Hashes: map[string]string{
			checksum.AlgorithmSHA1:   digests.SHA1,
			checksum.AlgorithmSHA512: digests.SHA512,
		},
		Downloads: []string{p.baseURL.JoinPath(strings.Split(rel, "/")...).String()},
		FileSize:  info.Size(),
	}, nil
}

// printNextSteps logs human-readable guidance for next actions with the created files.
func (p *packager) printNextSteps(ctx context.Context) {
	var builder strings.Builder

	builder.WriteString("You should upload the contents of ")
	builder.WriteString(p.opts.SourceDir)
	builder.WriteString(" to ")
	builder.WriteString(p.baseURL.String())
	builder.WriteString(".\nThen ship ")
	builder.WriteString(p.opts.Output)
	builder.WriteString(" with the overrides folder and run: modpack-install --manifest ")
	builder.WriteString(filepath.Base(p.opts.Output))
	builder.WriteString(" --overrides overrides --dest <instances folder> --name ")

	if p.index.Name != "" {
		builder.WriteString(p.index.Name)
	} else {
		builder.WriteString("<pack name>")
	}

	logger.Info(ctx, builder.String())
}
