// Package hashutil centralizes the content-hashing scheme used across the
// artifact store, atomic writer and cache keys: a 64-bit xxhash digest
// rendered as 16 lowercase hex digits.
//
// The upstream rtk implementation hashes with xxh3_64 (xxhash-rust). No pack
// example vendors a pure-Go XXH3 implementation, so this port uses
// github.com/cespare/xxhash/v2 (XXH64) instead — same non-cryptographic
// family, same 64-bit/16-hex-digit contract, different algorithm revision.
// Digests are therefore stable within this codebase but will not numerically
// match the Rust original's hashes. See DESIGN.md.
package hashutil

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Format renders a 64-bit digest as 16 lowercase hex digits.
func Format(digest uint64) string {
	return fmt.Sprintf("%016x", digest)
}

// Bytes hashes a byte slice and returns the formatted digest.
func Bytes(content []byte) string {
	return Format(xxhash.Sum64(content))
}

// String hashes a string and returns the formatted digest.
func String(s string) string {
	return Format(xxhash.Sum64String(s))
}

// Reader streams r through the hasher and returns the formatted digest.
func Reader(r io.Reader) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Format(h.Sum64()), nil
}

// RawBytes returns the unformatted 64-bit digest, used where an integer
// hash is compared directly rather than rendered (e.g. CAS snapshots).
func RawBytes(content []byte) uint64 {
	return xxhash.Sum64(content)
}
