// Package checksum provides content fingerprints.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Digest accumulates parts and returns a truncated SHA-256 hex digest.
type Digest struct {
	h hash.Hash
}

// NewDigest returns an empty digest.
func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

// WriteString appends s to the digest input.
func (d *Digest) WriteString(s string) {
	_, _ = d.h.Write([]byte(s))
}

// Hex returns the first n lowercase hex characters of the digest.
// n <= 0 or n larger than the full digest returns the full digest.
func (d *Digest) Hex(n int) string {
	full := hex.EncodeToString(d.h.Sum(nil))
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}
