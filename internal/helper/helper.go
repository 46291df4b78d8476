package helper

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash8 returns a short stable fingerprint, used to log e-mails without PII.
func Hash8(s string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
	return hex.EncodeToString(sum[:8])
}
