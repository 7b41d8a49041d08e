// Package common holds helpers shared by several services.
//
// It provides the gRPC client for the install server, the actor attached to
// remote requests for auditing, and process lookups used to refuse installs
// while a game launcher is running.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
