// Package client runs installs on a remote install server.
//
// The server performs the work on its own filesystem. Status messages are
// streamed back and logged as they arrive.
package client
