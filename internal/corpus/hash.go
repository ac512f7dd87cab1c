// Package corpus provides content fingerprinting and corpus identification.
//
// A corpus is the set of indexed records belonging to one watched directory
// tree. Its identifier is a digest of the absolute root path, so several
// independently-watched trees can share one store without key collisions.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// HashBytes returns the hex-encoded SHA-256 digest of content.
// Used to fingerprint file content: a change notification whose digest
// matches the stored one is a no-op and skips re-extraction and re-embedding.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashString returns the hex-encoded SHA-256 digest of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// ID derives the corpus identifier for a watched root directory.
// The path is cleaned first so "/a/b/../b" and "/a/b" map to the same corpus.
func ID(absRoot string) string {
	return HashString(filepath.Clean(absRoot))
}
