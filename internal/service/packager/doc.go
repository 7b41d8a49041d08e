// Package packager builds a pack index from a directory of files.
//
// Every regular file below the source directory becomes one index entry with
// its SHA-1 and SHA-512 digests, its size and a download URL under the base URL.
package packager
