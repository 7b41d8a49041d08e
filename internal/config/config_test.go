package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/modpack-installer/internal/version"
)

// TestValidate checks format validations and default filling.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	// Empty settings get defaults.
	settings := new(Config)
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultDownloadTimeout, settings.DownloadTimeout)
	require.Equal(t, version.UserAgent(), settings.UserAgent)
	require.Equal(t, DefaultLogLevel, settings.LogLevel)
	require.Zero(t, settings.Concurrency)

	// Bad socket.
	settings = &Config{ServerAddress: "bad:address"}
	require.Error(t, Validate(settings))

	// Negative concurrency.
	settings = &Config{Concurrency: -1}
	require.ErrorIs(t, Validate(settings), errNegativeConcurrency)

	// Negative download timeout.
	settings = &Config{DownloadTimeout: -time.Second}
	require.ErrorIs(t, Validate(settings), errNegativeTimeout)

	// Unknown level.
	settings = &Config{LogLevel: "chatty"}
	require.ErrorIs(t, Validate(settings), errUnknownLogLevel)

	// Okay with server address.
	settings = &Config{ServerAddress: "127.0.0.1:0", LogLevel: " DEBUG "}
	require.NoError(t, Validate(settings))
	require.Equal(t, "debug", settings.LogLevel)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ServerAddress:     "127.0.0.1:50051",
		Concurrency:       8,
		DownloadTimeout:   time.Minute,
		BlockingProcesses: []string{"javaw.exe", "MinecraftLauncher.exe"},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.ServerAddress, loaded.ServerAddress)
	require.Equal(t, settings.Concurrency, loaded.Concurrency)
	require.Equal(t, settings.DownloadTimeout, loaded.DownloadTimeout)
	require.Equal(t, settings.BlockingProcesses, loaded.BlockingProcesses)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoadOrDefault falls back to defaults only when the file is missing.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, cfg.Timeout)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("concurrency: [1"), 0o600))

	_, err = LoadOrDefault(broken)
	require.Error(t, err)
}
