package modpack

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/oshokin/modpack-installer/internal/checksum"
)

// DefaultEntryPath is used for manifest entries without a path.
const DefaultEntryPath = "mods"

// ManifestEntry describes one file to download.
type ManifestEntry struct {
	// URLs are the download locations. Only the first one is used.
	URLs []string
	// Path is the destination relative to the pack folder.
	Path string
	// Expected holds the optional SHA-1 and SHA-512 digests.
	Expected checksum.Digests
}

// URL returns the first download location or an empty string.
func (e ManifestEntry) URL() string {
	if len(e.URLs) == 0 {
		return ""
	}

	return e.URLs[0]
}

// RelativePath returns Path or DefaultEntryPath when Path is empty.
func (e ManifestEntry) RelativePath() string {
	if strings.TrimSpace(e.Path) == "" {
		return DefaultEntryPath
	}

	return e.Path
}

// Target resolves the entry inside folder. Absolute paths and paths climbing
// out of folder are rejected with ErrUnsafePath.
func (e ManifestEntry) Target(folder string) (string, error) {
	relative := filepath.FromSlash(e.RelativePath())
	if filepath.IsAbs(relative) || !filepath.IsLocal(relative) {
		return "", fmt.Errorf("%s: %w", e.RelativePath(), ErrUnsafePath)
	}

	return filepath.Join(folder, relative), nil
}

// InstallRequest names the sources and destination of one install run.
type InstallRequest struct {
	// ManifestPath is the optional manifest file, deleted after downloads finish.
	ManifestPath string
	// OverridesPath is the optional overrides tree, deleted after it is merged.
	OverridesPath string
	// DestinationRoot is the directory receiving the pack folder.
	DestinationRoot string
	// PackName is the name of the pack folder.
	PackName string
}

// DestinationFolder is DestinationRoot joined with PackName.
func (r *InstallRequest) DestinationFolder() string {
	return filepath.Join(r.DestinationRoot, r.PackName)
}

// Validate checks that the request names a single pack folder.
func (r *InstallRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}

	if strings.TrimSpace(r.DestinationRoot) == "" {
		return fmt.Errorf("%w: destination root is required", ErrInvalidRequest)
	}

	name := strings.TrimSpace(r.PackName)
	if name == "" {
		return fmt.Errorf("%w: pack name is required", ErrInvalidRequest)
	}

	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: pack name %q must be a single folder name", ErrInvalidRequest, r.PackName)
	}

	return nil
}
