// Package fetcher downloads a single manifest entry and verifies it.
//
// FetchAndVerify never returns an error: every failure becomes a status
// message so one broken mod never stops the rest of the install.
package fetcher
