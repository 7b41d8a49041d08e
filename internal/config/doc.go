// Package config defines the settings shared by the modpack binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Missing values are filled with defaults during validation, so a freshly
// loaded Config is always ready to use.
package config
