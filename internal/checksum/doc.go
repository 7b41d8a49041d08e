// Package checksum computes and compares the SHA-1 and SHA-512 digests used
// by modpack manifests.
//
// Files are read once in fixed-size chunks and the same stream feeds both
// hash functions, so large mod archives are never held in memory.
package checksum
