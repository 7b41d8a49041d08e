package overrides

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/modpack-installer/internal/domain/modpack"
)

const defaultDirMode os.FileMode = 0o755

var errNotDirectory = errors.New("not a directory")

// Option configures a merge.
type Option func(*merger)

// WithReporter receives a KindOverridesMerging message for every directory
// merged into an already existing one.
func WithReporter(report func(modpack.StatusMessage)) Option {
	return func(m *merger) {
		if report != nil {
			m.report = report
		}
	}
}

type merger struct {
	report func(modpack.StatusMessage)
}

// Merge copies every child of source into destination and then removes source.
func Merge(source, destination string, opts ...Option) error {
	m := &merger{
		report: func(modpack.StatusMessage) {},
	}

	for _, opt := range opts {
		opt(m)
	}

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat overrides: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: %w", source, errNotDirectory)
	}

	if err = os.MkdirAll(destination, defaultDirMode); err != nil {
		return fmt.Errorf("create %s: %w", destination, err)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}

	for _, entry := range entries {
		sourcePath := filepath.Join(source, entry.Name())
		targetPath := filepath.Join(destination, entry.Name())

		if err = m.mergeTopLevel(sourcePath, targetPath, entry); err != nil {
			return err
		}
	}

	if err = os.RemoveAll(source); err != nil {
		return fmt.Errorf("remove overrides: %w", err)
	}

	return nil
}

func (m *merger) mergeTopLevel(sourcePath, targetPath string, entry fs.DirEntry) error {
	if !entry.IsDir() {
		return copyEntry(sourcePath, targetPath, entry)
	}

	if info, err := os.Stat(targetPath); err == nil && info.IsDir() {
		m.report(modpack.StatusMessage{Kind: modpack.KindOverridesMerging, Path: targetPath})
	}

	return copyTree(sourcePath, targetPath)
}

// copyTree copies a directory over target, merging with whatever is there.
func copyTree(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat %s: %w", source, err)
	}

	if err = ensureDir(target, info.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}

	for _, entry := range entries {
		sourcePath := filepath.Join(source, entry.Name())
		targetPath := filepath.Join(target, entry.Name())

		if entry.IsDir() {
			err = copyTree(sourcePath, targetPath)
		} else {
			err = copyEntry(sourcePath, targetPath, entry)
		}

		if err != nil {
			return err
		}
	}

	return os.Chtimes(target, info.ModTime(), info.ModTime())
}

// ensureDir creates target, replacing a non-directory with the same name.
func ensureDir(target string, mode os.FileMode) error {
	info, err := os.Lstat(target)

	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		if err = os.Remove(target); err != nil {
			return fmt.Errorf("replace %s: %w", target, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", target, err)
	}

	if err = os.MkdirAll(target, mode|0o700); err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	return nil
}

func copyEntry(source, target string, entry fs.DirEntry) error {
	if entry.Type()&fs.ModeSymlink != 0 {
		return copySymlink(source, target)
	}

	return copyFile(source, target)
}

func copySymlink(source, target string) error {
	link, err := os.Readlink(source)
	if err != nil {
		return fmt.Errorf("read link %s: %w", source, err)
	}

	if err = removeIfExists(target); err != nil {
		return err
	}

	if err = os.Symlink(link, target); err != nil {
		return fmt.Errorf("create link %s: %w", target, err)
	}

	return nil
}

// copyFile overwrites target with source, keeping mode and modification time.
func copyFile(source, target string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat %s: %w", source, err)
	}

	if existing, statErr := os.Lstat(target); statErr == nil && (existing.IsDir() || existing.Mode()&fs.ModeSymlink != 0) {
		if err = os.RemoveAll(target); err != nil {
			return fmt.Errorf("replace %s: %w", target, err)
		}
	}

	in, err := os.Open(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("copy %s: %w", source, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}

	if err = os.Chmod(target, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}

	if err = os.Chtimes(target, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("chtimes %s: %w", target, err)
	}

	return nil
}

func removeIfExists(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}
