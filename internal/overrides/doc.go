// Package overrides merges an overrides tree into a pack folder.
//
// Source entries win on name collisions. Once every entry is copied the source
// tree is removed; a failed merge leaves it in place.
package overrides
