package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tazhibayda/identity-service/internal/security"
)

var ErrBadState = errors.New("invalid oauth state")

// StateSigner protects the OAuth round trip against CSRF. A state is
// "provider.nonce.expiry.sig" with an HMAC-SHA256 signature.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{key: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *StateSigner) Make(provider string) (string, error) {
	nonce, err := security.NewID()
	if err != nil {
		return "", err
	}
	raw := provider + "." + nonce + "." + strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)
	return raw + "." + s.sign(raw), nil
}

// Verify checks the signature, the expiry, and that the state was issued
// for provider.
func (s *StateSigner) Verify(state, provider string) error {
	i := strings.LastIndexByte(state, '.')
	if i < 0 {
		return ErrBadState
	}
	raw, sig := state[:i], state[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.sign(raw))) {
		return ErrBadState
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] != provider {
		return ErrBadState
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || s.now().Unix() > exp {
		return ErrBadState
	}
	return nil
}

func (s *StateSigner) sign(raw string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
