package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the fingerprint length in bytes. SHA-256 truncated to 128 bits
// keeps keys compact while the collision probability stays negligible at
// any realistic upload volume.
const Size = 16

// Derive computes the deterministic fingerprint of an image. The same
// bytes always yield the same fingerprint, which makes it usable as the
// cache and lock key component for identification results.
func Derive(image []byte) string {
	sum := sha256.Sum256(image)

	return hex.EncodeToString(sum[:Size])
}
