package modpack

import "errors"

var (
	// ErrDestinationExists is returned when the pack folder is already present.
	// Nothing is touched on disk in that case.
	ErrDestinationExists = errors.New("destination folder already exists")
	// ErrPackInUse is returned when a blocking process is running.
	ErrPackInUse = errors.New("a blocking process is running")
	// ErrMergeFailed wraps any failure while merging the overrides tree.
	ErrMergeFailed = errors.New("merge overrides")
	// ErrManifest wraps manifest read and decode failures.
	ErrManifest = errors.New("read manifest")
	// ErrInvalidRequest is returned for requests that cannot name a destination.
	ErrInvalidRequest = errors.New("invalid install request")

	// ErrNoDownloadURL is reported for entries with an empty downloads list.
	ErrNoDownloadURL = errors.New("no download url")
	// ErrUnsafePath is reported for entries escaping the pack folder.
	ErrUnsafePath = errors.New("path escapes the pack folder")
	// ErrTransport is reported when the request could not be performed.
	ErrTransport = errors.New("transport error")
	// ErrBadHTTPStatus is reported for any response other than 200 OK.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// ErrWrite is reported when the body could not be written to disk.
	ErrWrite = errors.New("write file")
	// ErrHashRead is reported when the written file could not be hashed.
	ErrHashRead = errors.New("read file for hashing")
)
