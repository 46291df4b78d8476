package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

func newClaims(uid, email, provider string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		UID: uid, Email: email, Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   uid,
		},
	}
}

func MakeAccess(secret, uid, email, provider string, ttl time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims(uid, email, provider, ttl))
	return t.SignedString([]byte(secret))
}

func ParseAccess(secret, token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

func MakeAccessRS256(km *KeyManager, uid, email, provider string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, newClaims(uid, email, provider, ttl))
	token.Header["kid"] = km.activeKid
	return token.SignedString(km.signer)
}

func ParseAccessRS256(km *KeyManager, token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(tk *jwt.Token) (interface{}, error) {
		kid, _ := tk.Header["kid"].(string)
		if pk, ok := km.PublicByKid(kid); ok {
			return pk, nil
		}
		return nil, fmt.Errorf("unknown kid %q", kid)
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// Issuer mints and verifies session tokens. It signs with RS256 when a
// KeyManager is set and falls back to HS256 with the shared secret.
type Issuer struct {
	Secret string
	Keys   *KeyManager
	TTL    time.Duration
}

func (i *Issuer) Issue(uid, email, provider string) (string, error) {
	if i.Keys != nil {
		return MakeAccessRS256(i.Keys, uid, email, provider, i.TTL)
	}
	return MakeAccess(i.Secret, uid, email, provider, i.TTL)
}

func (i *Issuer) Parse(token string) (*Claims, error) {
	if i.Keys != nil {
		return ParseAccessRS256(i.Keys, token)
	}
	return ParseAccess(i.Secret, token)
}
