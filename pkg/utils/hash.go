package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey joins parts with a NUL separator and returns the hex SHA-256 digest.
// It is used to build fixed-length cache keys from arbitrary text.
func HashKey(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
