// Package manifest reads and writes the Modrinth pack index
// (modrinth.index.json) and turns it into domain manifest entries.
package manifest
