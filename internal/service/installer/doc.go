// Package installer installs a modpack into a fresh pack folder.
//
// An install creates the folder, merges the overrides tree, downloads every
// manifest entry in parallel and finally removes the consumed sources. Each
// download reports exactly once through the status callback; individual
// failures never stop the run.
package installer
