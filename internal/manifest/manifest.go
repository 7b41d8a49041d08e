package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/modpack-installer/internal/checksum"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
)

const (
	// DefaultFilename is the conventional index name inside a .mrpack archive.
	DefaultFilename = "modrinth.index.json"
	// FormatVersion is the index format version written by Save.
	FormatVersion = 1
	// DefaultGame is the game written by Save when none is set.
	DefaultGame = "minecraft"

	defaultFileMode os.FileMode = 0o644
)

var errNoFiles = errors.New("manifest has no files field")

// Index is the decoded pack index.
type Index struct {
	FormatVersion int               `json:"formatVersion"`
	Game          string            `json:"game,omitempty"`
	VersionID     string            `json:"versionId,omitempty"`
	Name          string            `json:"name,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	Files         []File            `json:"files"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
}

// File is one downloadable entry of the index.
type File struct {
	Path      string            `json:"path,omitempty"`
	Hashes    map[string]string `json:"hashes,omitempty"`
	Env       *Env              `json:"env,omitempty"`
	Downloads []string          `json:"downloads"`
	FileSize  int64             `json:"fileSize,omitempty"`
}

// Env tells on which side the file is needed.
type Env struct {
	Client string `json:"client,omitempty"`
	Server string `json:"server,omitempty"`
}

// Decode parses an index from r. A document without a files field is rejected.
func Decode(r io.Reader) (*Index, error) {
	var raw struct {
		Index

		Files *[]File `json:"files"`
	}

	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if raw.Files == nil {
		return nil, errNoFiles
	}

	index := raw.Index
	index.Files = *raw.Files

	return &index, nil
}

// Load opens and decodes the index at path.
func Load(path string) (*Index, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	return Decode(file)
}

// Encode writes the index as indented JSON.
func Encode(w io.Writer, index *Index) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(index); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	return nil
}

// Save writes the index to path, filling the format version and game.
func Save(path string, index *Index) error {
	if index.FormatVersion == 0 {
		index.FormatVersion = FormatVersion
	}

	if index.Game == "" {
		index.Game = DefaultGame
	}

	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFileMode)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	if err = Encode(file, index); err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}

// Entries converts the index files into manifest entries, keeping their order.
func (i *Index) Entries() []modpack.ManifestEntry {
	entries := make([]modpack.ManifestEntry, 0, len(i.Files))

	for _, file := range i.Files {
		entries = append(entries, file.Entry())
	}

	return entries
}

// Entry converts a single index file.
func (f *File) Entry() modpack.ManifestEntry {
	path := f.Path
	if path == "" {
		path = modpack.DefaultEntryPath
	}

	return modpack.ManifestEntry{
		URLs: append([]string(nil), f.Downloads...),
		Path: path,
		Expected: checksum.FromHashes(f.Hashes),
	}
}
