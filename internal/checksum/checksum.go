package checksum

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Register SHA-1 and SHA-512 with the crypto package.
	_ "crypto/sha1" //nolint:gosec // SHA-1 is mandated by the manifest format.
	_ "crypto/sha512"
)

const (
	// AlgorithmSHA1 names the SHA-1 digest in manifests and reports.
	AlgorithmSHA1 = "sha1"
	// AlgorithmSHA512 names the SHA-512 digest in manifests and reports.
	AlgorithmSHA512 = "sha512"

	// chunkSize is the read buffer shared by both hash functions.
	chunkSize = 4096
)

var errHashUnavailable = errors.New("hash function unavailable")

// Digests holds lowercase hex digests of one file.
// Used as an expectation, an empty field is "not provided" unless its Set
// flag marks a value that was announced blank. A blank announced value never matches.
type Digests struct {
	// SHA1 is the hex SHA-1 digest.
	SHA1 string
	// SHA512 is the hex SHA-512 digest.
	SHA512 string
	// SHA1Set marks a present SHA-1 expectation, even a blank one.
	SHA1Set bool
	// SHA512Set marks a present SHA-512 expectation, even a blank one.
	SHA512Set bool
}

// FromHashes builds an expectation from an algorithm-to-digest map. Keys that
// are present count as provided whatever their value.
func FromHashes(hashes map[string]string) Digests {
	var d Digests

	d.SHA1, d.SHA1Set = hashes[AlgorithmSHA1]
	d.SHA512, d.SHA512Set = hashes[AlgorithmSHA512]

	return d
}

// IsZero reports whether no digest is set.
func (d Digests) IsZero() bool {
	return d.SHA1 == "" && d.SHA512 == "" && !d.SHA1Set && !d.SHA512Set
}

// Check is the comparison result for one algorithm.
type Check struct {
	// Algorithm is AlgorithmSHA1 or AlgorithmSHA512.
	Algorithm string
	// Expected is the digest announced by the manifest.
	Expected string
	// Computed is the digest of the bytes on disk.
	Computed string
	// Match is true when Expected and Computed agree.
	Match bool
}

// String renders the check as "sha1 expected X, got Y".
func (c Check) String() string {
	return fmt.Sprintf("%s expected %s, got %s", c.Algorithm, c.Expected, c.Computed)
}

// ComputeDigests streams the file at path once and returns its SHA-1 and SHA-512 digests.
func ComputeDigests(path string) (Digests, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Digests{}, fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	digests, err := ComputeReader(file)
	if err != nil {
		return Digests{}, fmt.Errorf("hash %s: %w", path, err)
	}

	return digests, nil
}

// ComputeReader hashes everything read from r.
func ComputeReader(r io.Reader) (Digests, error) {
	sha1Hash, err := newHash(crypto.SHA1)
	if err != nil {
		return Digests{}, err
	}

	sha512Hash, err := newHash(crypto.SHA512)
	if err != nil {
		return Digests{}, err
	}

	buffer := make([]byte, chunkSize)
	if _, err = io.CopyBuffer(io.MultiWriter(sha1Hash, sha512Hash), onlyReader{r}, buffer); err != nil {
		return Digests{}, fmt.Errorf("read data for checksum: %w", err)
	}

	return Digests{
		SHA1:   hex.EncodeToString(sha1Hash.Sum(nil)),
		SHA512: hex.EncodeToString(sha512Hash.Sum(nil)),
	}, nil
}

// Matches compares a computed digest with an expected one.
// An empty expectation is not checked and always matches.
func Matches(computed, expected string) bool {
	expected = normalize(expected)
	if expected == "" {
		return true
	}

	return normalize(computed) == expected
}

// Verify returns one Check per algorithm that has an expectation, in
// SHA-1, SHA-512 order. No expectations yield no checks. An expectation that
// is present but blank yields a failed check.
func Verify(computed, expected Digests) []Check {
	checks := make([]Check, 0, 2)

	pairs := [...]struct {
		algorithm string
		computed  string
		expected  string
		set       bool
	}{
		{AlgorithmSHA1, computed.SHA1, expected.SHA1, expected.SHA1Set},
		{AlgorithmSHA512, computed.SHA512, expected.SHA512, expected.SHA512Set},
	}

	for _, pair := range pairs {
		want := normalize(pair.expected)
		if want == "" && !pair.set {
			continue
		}

		checks = append(checks, Check{
			Algorithm: pair.algorithm,
			Expected:  want,
			Computed:  pair.computed,
			Match:     want != "" && normalize(pair.computed) == want,
		})
	}

	return checks
}

// Mismatched filters the failed checks.
func Mismatched(checks []Check) []Check {
	var failed []Check

	for _, check := range checks {
		if !check.Match {
			failed = append(failed, check)
		}
	}

	return failed
}

func newHash(h crypto.Hash) (hash.Hash, error) {
	if !h.Available() {
		return nil, fmt.Errorf("%s: %w", h, errHashUnavailable)
	}

	return h.New(), nil
}

func normalize(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}

// onlyReader hides io.WriterTo so io.CopyBuffer always reads through the
// fixed-size buffer.
type onlyReader struct {
	io.Reader
}
