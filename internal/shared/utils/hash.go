package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	// BLAKE2b is the default for content fingerprints: faster than SHA-256
	// on large file bodies at the same 256-bit output size.
	BLAKE2b HashAlgorithm = "blake2b"
)

// Hasher provides extensible hashing functionality
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(BLAKE2b)
}

// Hash computes a hex-encoded hash of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case SHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	case BLAKE2b:
		sum := blake2b.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		// Fallback to SHA256
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// Fingerprint identifies file bodies for duplicate detection and
// artifact checksums.
type Fingerprint struct {
	hasher *Hasher
}

// NewFingerprint creates a fingerprinter; nil hasher means the default
func NewFingerprint(hasher *Hasher) *Fingerprint {
	if hasher == nil {
		hasher = DefaultHasher()
	}
	return &Fingerprint{hasher: hasher}
}

// Content returns the full content hash for a file body
func (f *Fingerprint) Content(data []byte) string {
	return f.hasher.Hash(data)
}

// Short returns an 8-character hash for display in skip records and logs
func (f *Fingerprint) Short(fullHash string) string {
	if len(fullHash) < 8 {
		return fullHash
	}
	return fullHash[:8]
}

// Checksum returns an annotated checksum string for an artifact,
// e.g. "blake2b:9f86d081...".
func (f *Fingerprint) Checksum(data []byte) string {
	return fmt.Sprintf("%s:%s", f.hasher.algorithm, f.hasher.Hash(data))
}

// Verify checks data against a previously computed content hash
func (f *Fingerprint) Verify(hash string, data []byte) bool {
	return hash == f.Content(data)
}
