package repo

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken is how one-time tokens are keyed at rest: sha256, base64url.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
