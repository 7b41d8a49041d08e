package modpack

import (
	"fmt"
	"strings"

	"github.com/oshokin/modpack-installer/internal/checksum"
)

// Kind classifies a status message.
type Kind int

// Status message kinds in the order they usually appear during a run.
const (
	KindUnknown Kind = iota
	KindFolderCreated
	KindOverridesMerging
	KindOverridesCopied
	KindOverridesDeleted
	KindVerified
	KindHashMismatch
	KindDownloadFailed
	KindManifestDeleted
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFolderCreated:
		return "folder_created"
	case KindOverridesMerging:
		return "overrides_merging"
	case KindOverridesCopied:
		return "overrides_copied"
	case KindOverridesDeleted:
		return "overrides_deleted"
	case KindVerified:
		return "verified"
	case KindHashMismatch:
		return "hash_mismatch"
	case KindDownloadFailed:
		return "download_failed"
	case KindManifestDeleted:
		return "manifest_deleted"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) Kind {
	for k := KindFolderCreated; k <= KindManifestDeleted; k++ {
		if k.String() == s {
			return k
		}
	}

	return KindUnknown
}

// Verification is the integrity verdict of a download.
type Verification int

// Verification verdicts.
const (
	// VerificationUnknown means the file was never hashed.
	VerificationUnknown Verification = iota
	// VerificationVerified means every provided digest matched, or none was provided.
	VerificationVerified
	// VerificationMismatched means at least one provided digest differed.
	VerificationMismatched
)

// String returns the wire name of the verdict.
func (v Verification) String() string {
	switch v {
	case VerificationVerified:
		return "verified"
	case VerificationMismatched:
		return "mismatched"
	default:
		return "unknown"
	}
}

// ParseVerification is the inverse of Verification.String.
func ParseVerification(s string) Verification {
	switch s {
	case "verified":
		return VerificationVerified
	case "mismatched":
		return VerificationMismatched
	default:
		return VerificationUnknown
	}
}

// DownloadOutcome is the single result of fetching one manifest entry.
type DownloadOutcome struct {
	// Path is the destination file.
	Path string
	// Success is true when the body was written to Path.
	Success bool
	// Verification is the integrity verdict, unknown for failed downloads.
	Verification Verification
	// Checks lists the compared digests, empty when nothing was expected.
	Checks []checksum.Check
	// Err is the failure cause of an unsuccessful download.
	Err error
}

// StatusMessage is one line of progress reported during an install.
type StatusMessage struct {
	// Kind classifies the message.
	Kind Kind
	// Path is the file or folder the message is about.
	Path string
	// Outcome is set for per-entry download results only.
	Outcome *DownloadOutcome
}

// IsOutcome reports whether the message carries a download result.
func (m StatusMessage) IsOutcome() bool {
	return m.Outcome != nil
}

// String renders the message for the textual status sink.
func (m StatusMessage) String() string {
	switch m.Kind {
	case KindFolderCreated:
		return fmt.Sprintf("Created folder '%s'.", m.Path)
	case KindOverridesMerging:
		return fmt.Sprintf("Merging contents into existing directory '%s'.", m.Path)
	case KindOverridesCopied:
		return "Overrides folder contents copied."
	case KindOverridesDeleted:
		return "Overrides folder deleted."
	case KindVerified:
		return fmt.Sprintf("Verified hashes for %s.", m.Path)
	case KindHashMismatch:
		return fmt.Sprintf("Hash mismatch for %s! %s.", m.Path, m.mismatchDetails())
	case KindDownloadFailed:
		return fmt.Sprintf("Failed to download %s: %v", m.Path, m.cause())
	case KindManifestDeleted:
		return "Modpack index file deleted."
	default:
		return m.Path
	}
}

func (m StatusMessage) mismatchDetails() string {
	if m.Outcome == nil {
		return "digest differs"
	}

	failed := checksum.Mismatched(m.Outcome.Checks)
	parts := make([]string, 0, len(failed))

	for _, check := range failed {
		parts = append(parts, check.String())
	}

	return strings.Join(parts, "; ")
}

func (m StatusMessage) cause() error {
	if m.Outcome == nil || m.Outcome.Err == nil {
		return ErrTransport
	}

	return m.Outcome.Err
}

// Verified builds the outcome message for a file whose digests matched.
func Verified(path string, checks []checksum.Check) StatusMessage {
	return StatusMessage{
		Kind: KindVerified,
		Path: path,
		Outcome: &DownloadOutcome{
			Path:         path,
			Success:      true,
			Verification: VerificationVerified,
			Checks:       checks,
		},
	}
}

// HashMismatch builds the outcome message for a file kept despite a digest mismatch.
func HashMismatch(path string, checks []checksum.Check) StatusMessage {
	return StatusMessage{
		Kind: KindHashMismatch,
		Path: path,
		Outcome: &DownloadOutcome{
			Path:         path,
			Success:      true,
			Verification: VerificationMismatched,
			Checks:       checks,
		},
	}
}

// DownloadFailed builds the outcome message for a file that could not be fetched.
func DownloadFailed(path string, err error) StatusMessage {
	return StatusMessage{
		Kind: KindDownloadFailed,
		Path: path,
		Outcome: &DownloadOutcome{
			Path:         path,
			Success:      false,
			Verification: VerificationUnknown,
			Err:          err,
		},
	}
}
