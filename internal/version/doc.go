// Package version exposes build metadata for the modpack binaries.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short and Full render them for CLI output and logs, UserAgent
// for outgoing download requests.
package version
