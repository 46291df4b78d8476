package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
)

// KeyFile names a PEM-encoded RSA private key and the kid it is published under.
type KeyFile struct {
	Kid  string
	Path string
}

// KeyManager signs sessions with the active key and verifies with every key
// it holds. An upcoming key is published in the JWKS ahead of its promotion,
// so relying parties already trust it once sessions are signed with it.
type KeyManager struct {
	activeKid string
	signer    *rsa.PrivateKey
	kids      []string
	public    map[string]*rsa.PublicKey
}

func NewKeyManager(active KeyFile, upcoming ...KeyFile) (*KeyManager, error) {
	km := &KeyManager{public: map[string]*rsa.PublicKey{}}
	for i, kf := range append([]KeyFile{active}, upcoming...) {
		if kf.Kid == "" {
			return nil, fmt.Errorf("key %s: empty kid", kf.Path)
		}
		if _, dup := km.public[kf.Kid]; dup {
			return nil, fmt.Errorf("key %s: duplicate kid %q", kf.Path, kf.Kid)
		}
		priv, err := readRSAKey(kf.Path)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", kf.Path, err)
		}
		if i == 0 {
			km.activeKid, km.signer = kf.Kid, priv
		}
		km.kids = append(km.kids, kf.Kid)
		km.public[kf.Kid] = &priv.PublicKey
	}
	return km, nil
}

func readRSAKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("unsupported PEM type %q", block.Type)
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	if rk, ok := k.(*rsa.PrivateKey); ok {
		return rk, nil
	}
	return nil, errors.New("PKCS#8 key is not RSA")
}

// ActiveKid is the kid new sessions are signed under.
func (km *KeyManager) ActiveKid() string { return km.activeKid }

func (km *KeyManager) PublicByKid(kid string) (*rsa.PublicKey, bool) {
	pk, ok := km.public[kid]
	return pk, ok
}

// JWK is the RFC 7517 subset needed to publish RSA signing keys.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS lists the active key first, then upcoming keys in load order.
func (km *KeyManager) JWKS() JWKSet {
	set := JWKSet{Keys: make([]JWK, 0, len(km.kids))}
	for _, kid := range km.kids {
		pk := km.public[kid]
		set.Keys = append(set.Keys, JWK{
			Kty: "RSA",
			Kid: kid,
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pk.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pk.E)).Bytes()),
		})
	}
	return set
}
