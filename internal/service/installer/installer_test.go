package installer

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/modpack-installer/internal/domain/modpack"
	"github.com/oshokin/modpack-installer/internal/manifest"
)

var errTestProcesses = errors.New("test process listing error")

// fixture is an install request with its sources laid out in a temp folder.
type fixture struct {
	root    string
	request *modpack.InstallRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()

	return &fixture{
		root: root,
		request: &modpack.InstallRequest{
			ManifestPath:    filepath.Join(root, "src", manifest.DefaultFilename),
			OverridesPath:   filepath.Join(root, "src", "overrides"),
			DestinationRoot: filepath.Join(root, "instances"),
			PackName:        "test-pack",
		},
	}
}

func (f *fixture) writeOverride(t *testing.T, relative, contents string) {
	t.Helper()

	path := filepath.Join(f.request.OverridesPath, relative)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func (f *fixture) writeManifest(t *testing.T, files ...manifest.File) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(f.request.ManifestPath), 0o755))
	require.NoError(t, manifest.Save(f.request.ManifestPath, &manifest.Index{Name: "test", Files: files}))
}

func (f *fixture) folder() string {
	return f.request.DestinationFolder()
}

func sha512Hex(body string) string {
	sum := sha512.Sum512([]byte(body))

	return hex.EncodeToString(sum[:])
}

// newCDN serves /<name> with body "<name>-body" and 404 for /missing/*.
func newCDN(t *testing.T, inFlight, peak *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inFlight != nil {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)

			for {
				old := peak.Load()
				if current <= old || peak.CompareAndSwap(old, current) {
					break
				}
			}

			time.Sleep(20 * time.Millisecond)
		}

		if path.Dir(r.URL.Path) == "/missing" {
			http.NotFound(w, r)

			return
		}

		_, _ = fmt.Fprintf(w, "%s-body", path.Base(r.URL.Path))
	}))
	t.Cleanup(server.Close)

	return server
}

func outcomes(messages []modpack.StatusMessage) []modpack.StatusMessage {
	var result []modpack.StatusMessage

	for _, message := range messages {
		if message.IsOutcome() {
			result = append(result, message)
		}
	}

	return result
}

// TestInstall_DestinationExists fails without touching the filesystem.
func TestInstall_DestinationExists(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writeOverride(t, "options.txt", "fov:90")
	f.writeManifest(t)
	require.NoError(t, os.MkdirAll(f.folder(), 0o755))

	var called bool

	messages, err := New().Install(context.Background(), f.request, func(modpack.StatusMessage) { called = true })

	require.ErrorIs(t, err, modpack.ErrDestinationExists)
	require.Empty(t, messages)
	require.False(t, called)

	entries, err := os.ReadDir(f.folder())
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = os.Stat(f.request.ManifestPath)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.request.OverridesPath, "options.txt"))
	require.NoError(t, err)
}

// TestInstall_InvalidRequest rejects requests without a pack name.
func TestInstall_InvalidRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.request.PackName = ""

	_, err := New().Install(context.Background(), f.request, nil)
	require.ErrorIs(t, err, modpack.ErrInvalidRequest)

	_, err = os.Stat(f.request.DestinationRoot)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestInstall_FullRun merges overrides, downloads three entries with one 404
// and removes both sources.
func TestInstall_FullRun(t *testing.T) {
	t.Parallel()

	cdn := newCDN(t, nil, nil)
	f := newFixture(t)

	f.writeOverride(t, "config/sodium.json", "{}")
	f.writeOverride(t, "options.txt", "fov:90")
	f.writeManifest(t,
		manifest.File{
			Path:      "mods/a.jar",
			Hashes:    map[string]string{"sha512": sha512Hex("a.jar-body")},
			Downloads: []string{cdn.URL + "/a.jar"},
		},
		manifest.File{
			Path:      "mods/b.jar",
			Hashes:    map[string]string{"sha512": sha512Hex("something else")},
			Downloads: []string{cdn.URL + "/b.jar"},
		},
		manifest.File{
			Path:      "mods/c.jar",
			Downloads: []string{cdn.URL + "/missing/c.jar"},
		},
	)

	var streamed []modpack.StatusMessage

	messages, err := New().Install(context.Background(), f.request, func(message modpack.StatusMessage) {
		streamed = append(streamed, message)
	})
	require.NoError(t, err)
	require.Equal(t, messages, streamed)

	// Lifecycle order: folder, overrides, three outcomes, manifest removal.
	require.Len(t, messages, 7)
	require.Equal(t, modpack.KindFolderCreated, messages[0].Kind)
	require.Equal(t, modpack.KindOverridesCopied, messages[1].Kind)
	require.Equal(t, modpack.KindOverridesDeleted, messages[2].Kind)
	require.Equal(t, modpack.KindManifestDeleted, messages[6].Kind)

	byKind := map[modpack.Kind]int{}
	for _, message := range outcomes(messages) {
		byKind[message.Kind]++
	}

	require.Equal(t, map[modpack.Kind]int{
		modpack.KindVerified:       1,
		modpack.KindHashMismatch:   1,
		modpack.KindDownloadFailed: 1,
	}, byKind)

	summary := Summarize(messages)
	require.Equal(t, &Summary{Verified: 1, Mismatched: 1, Failed: 1}, summary)

	contents, err := os.ReadFile(filepath.Join(f.folder(), "mods", "a.jar"))
	require.NoError(t, err)
	require.Equal(t, "a.jar-body", string(contents))

	// The mismatched file is kept for the caller to decide.
	_, err = os.Stat(filepath.Join(f.folder(), "mods", "b.jar"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.folder(), "config", "sodium.json"))
	require.NoError(t, err)

	_, err = os.Stat(f.request.OverridesPath)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(f.request.ManifestPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestInstall_OptionalSources creates only the folder when no sources exist.
func TestInstall_OptionalSources(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.request.ManifestPath = ""

	messages, err := New().Install(context.Background(), f.request, nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, modpack.KindFolderCreated, messages[0].Kind)

	info, err := os.Stat(f.folder())
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

// TestInstall_EveryEntryReportsOnce checks exactly N outcomes for N entries,
// with and without a concurrency limit.
func TestInstall_EveryEntryReportsOnce(t *testing.T) {
	t.Parallel()

	const entries = 24

	for _, limit := range []int{0, 4} {
		t.Run(fmt.Sprintf("limit-%d", limit), func(t *testing.T) {
			t.Parallel()

			var inFlight, peak atomic.Int32

			cdn := newCDN(t, &inFlight, &peak)
			f := newFixture(t)

			files := make([]manifest.File, 0, entries)
			for n := range entries {
				url := fmt.Sprintf("%s/mod-%02d.jar", cdn.URL, n)
				if n%5 == 0 {
					url = fmt.Sprintf("%s/missing/mod-%02d.jar", cdn.URL, n)
				}

				files = append(files, manifest.File{
					Path:      fmt.Sprintf("mods/mod-%02d.jar", n),
					Downloads: []string{url},
				})
			}

			f.writeManifest(t, files...)

			messages, err := New(WithConcurrency(limit)).Install(context.Background(), f.request, nil)
			require.NoError(t, err)

			seen := map[string]int{}
			for _, message := range outcomes(messages) {
				seen[message.Path]++
			}

			require.Len(t, seen, entries)

			for path, count := range seen {
				require.Equal(t, 1, count, path)
			}

			if limit > 0 {
				require.LessOrEqual(t, peak.Load(), int32(limit))
			}
		})
	}
}

// TestInstall_EmptyDownloads reports a failure for entries without URLs.
func TestInstall_EmptyDownloads(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.writeManifest(t, manifest.File{Path: "mods/nothing.jar", Downloads: []string{}})

	messages, err := New().Install(context.Background(), f.request, nil)
	require.NoError(t, err)

	results := outcomes(messages)
	require.Len(t, results, 1)
	require.Equal(t, modpack.KindDownloadFailed, results[0].Kind)
	require.ErrorIs(t, results[0].Outcome.Err, modpack.ErrNoDownloadURL)
}

// TestInstall_BrokenManifest aborts and keeps the manifest.
func TestInstall_BrokenManifest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.request.ManifestPath), 0o755))
	require.NoError(t, os.WriteFile(f.request.ManifestPath, []byte("{not json"), 0o644))

	messages, err := New().Install(context.Background(), f.request, nil)
	require.ErrorIs(t, err, modpack.ErrManifest)
	require.Len(t, messages, 1)

	_, err = os.Stat(f.request.ManifestPath)
	require.NoError(t, err)
}

// TestInstall_BlockingProcess refuses to start while a listed process runs.
func TestInstall_BlockingProcess(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	inst := New(WithBlockingProcesses([]string{" javaw.exe ", ""}))
	require.Equal(t, []string{"javaw.exe"}, inst.blockingProcesses)

	inst.findRunning = func(names []string) ([]string, error) {
		return names, nil
	}

	_, err := inst.Install(context.Background(), f.request, nil)
	require.ErrorIs(t, err, modpack.ErrPackInUse)

	_, err = os.Stat(f.folder())
	require.ErrorIs(t, err, os.ErrNotExist)

	inst.findRunning = func([]string) ([]string, error) {
		return nil, errTestProcesses
	}

	_, err = inst.Install(context.Background(), f.request, nil)
	require.ErrorIs(t, err, errTestProcesses)

	inst.findRunning = func([]string) ([]string, error) {
		return nil, nil
	}

	_, err = inst.Install(context.Background(), f.request, nil)
	require.NoError(t, err)
}

// TestInstall_MergeFailure stops before any download and keeps what was done so far.
func TestInstall_MergeFailure(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte("body"))
	}))
	t.Cleanup(server.Close)

	f := newFixture(t)
	f.writeManifest(t, manifest.File{Path: "mods/a.jar", Downloads: []string{server.URL + "/a.jar"}})

	// A regular file where the overrides folder is expected cannot be merged.
	require.NoError(t, os.WriteFile(f.request.OverridesPath, []byte("not a folder"), 0o600))

	messages, err := New().Install(context.Background(), f.request, nil)

	require.ErrorIs(t, err, modpack.ErrMergeFailed)
	require.Len(t, messages, 1)
	require.Equal(t, modpack.KindFolderCreated, messages[0].Kind)

	require.DirExists(t, f.folder())
	require.FileExists(t, f.request.ManifestPath)
	require.FileExists(t, f.request.OverridesPath)
	require.NoFileExists(t, filepath.Join(f.folder(), "mods", "a.jar"))
	require.Zero(t, requests.Load())
}
