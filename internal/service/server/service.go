package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	api "github.com/oshokin/modpack-installer/internal/api/grpc/installer"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
	"github.com/oshokin/modpack-installer/internal/logger"
	"github.com/oshokin/modpack-installer/internal/service/common"
	"github.com/oshokin/modpack-installer/internal/service/installer"
)

// errOutsideRoot is returned when a request path leaves the server's root directory.
var errOutsideRoot = errors.New("path is outside the server root")

// service runs installs requested over gRPC one at a time.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// installer performs the actual install.
	installer api.Service
	// rootDir restricts request paths when not empty.
	rootDir string
	// mu serialises installs so two requests never race on one destination.
	mu sync.Mutex
}

// newService creates a service backed by the provided installer.
func newService(inst api.Service, rootDir string) (*service, error) {
	s := &service{
		installer: inst,
	}

	if rootDir == "" {
		return s, nil
	}

	absRoot, err := resolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root directory: %w", err)
	}

	s.rootDir = absRoot

	return s, nil
}

// Install checks the request against the root directory, then runs it while
// logging every status message.
func (s *service) Install(
	ctx context.Context,
	req *modpack.InstallRequest,
	onStatus func(modpack.StatusMessage),
) ([]modpack.StatusMessage, error) {
	if err := s.checkRoot(req); err != nil {
		return nil, err
	}

	ctx = logger.WithName(ctx, "modpack-server")
	ctx = logger.WithKV(ctx, "pack", req.PackName)

	if actor, ok := common.ActorFromIncoming(ctx); ok {
		ctx = logger.WithKV(ctx, "actor", actor.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logger.InfoKV(ctx, "Install requested", "destination", req.DestinationFolder())

	messages, err := s.installer.Install(ctx, req, func(message modpack.StatusMessage) {
		installer.LogStatus(ctx, message)

		if onStatus != nil {
			onStatus(message)
		}
	})
	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)

		return messages, err
	}

	summary := installer.Summarize(messages)
	logger.InfoKV(ctx, "Install completed",
		"verified", summary.Verified,
		"mismatched", summary.Mismatched,
		"failed", summary.Failed)

	return messages, nil
}

// checkRoot rejects requests touching paths outside rootDir.
func (s *service) checkRoot(req *modpack.InstallRequest) error {
	if s.rootDir == "" || req == nil {
		return nil
	}

	for _, path := range []string{req.ManifestPath, req.OverridesPath, req.DestinationRoot} {
		if path == "" {
			continue
		}

		if !within(s.rootDir, path) {
			return fmt.Errorf("%w: %w: %s", modpack.ErrInvalidRequest, errOutsideRoot, path)
		}
	}

	return nil
}

// within reports whether path resolves to root or somewhere below it.
// Symlinks along the existing part of path are followed.
func within(root, path string) bool {
	resolved, err := resolvePath(path)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}

	return rel == "." || filepath.IsLocal(rel)
}

// resolvePath makes path absolute and evaluates symlinks in its longest
// existing prefix. Missing trailing elements are appended unchanged.
func resolvePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := absPath

	var missing []string

	for {
		resolved, evalErr := filepath.EvalSymlinks(existing)
		if evalErr == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}

		if !errors.Is(evalErr, fs.ErrNotExist) {
			return "", evalErr
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return absPath, nil
		}

		missing = append([]string{filepath.Base(existing)}, missing...)
		existing = parent
	}
}
