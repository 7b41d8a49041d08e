// Package modpack contains the core domain types of an install run.
//
// It defines what a manifest entry and an install request look like, the
// status messages emitted while installing, and the sentinel errors that
// decide whether a run is aborted.
package modpack
