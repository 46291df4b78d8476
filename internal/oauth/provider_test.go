package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tazhibayda/identity-service/internal/oauth"
	"golang.org/x/oauth2"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func endpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"}
}

func TestGoogle_Exchange(t *testing.T) {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "https://accounts.google.com", "aud": "cid", "sub": "g-123",
		"email": "a@x.com", "email_verified": true, "name": "A",
	}).SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"access_token": "at", "token_type": "Bearer", "expires_in": 3600,
			"refresh_token": "rt", "id_token": idToken,
		})
	}))
	defer srv.Close()

	g := oauth.NewGoogle("cid", "secret", "http://localhost/cb", oauth.WithEndpoint(endpoint(srv)))
	assert.Equal(t, "google", g.Name())

	u, err := url.Parse(g.AuthURL("st"))
	require.NoError(t, err)
	assert.Equal(t, "st", u.Query().Get("state"))
	assert.Equal(t, "offline", u.Query().Get("access_type"))

	id, err := g.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "g-123", id.AccountID)
	assert.Equal(t, "a@x.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "rt", id.RefreshToken)
	require.NotNil(t, id.Expiry)
}

func TestGoogle_RejectsForeignAudience(t *testing.T) {
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "accounts.google.com", "aud": "someone-else", "sub": "g-1", "email": "a@x.com",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": "at", "token_type": "Bearer", "id_token": idToken})
	}))
	defer srv.Close()

	_, err = oauth.NewGoogle("cid", "s", "", oauth.WithEndpoint(endpoint(srv))).Exchange(context.Background(), "c")
	assert.Error(t, err)
}

func TestGitHub_Exchange_PrivateEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": "at", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		writeJSON(w, map[string]any{"id": 42, "login": "octo", "email": nil})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{
			{"email": "old@x.com", "primary": false, "verified": true},
			{"email": "a@x.com", "primary": true, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := oauth.NewGitHub("cid", "s", "", oauth.WithEndpoint(endpoint(srv)), oauth.WithAPIBase(srv.URL))
	id, err := g.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "github", id.Provider)
	assert.Equal(t, "42", id.AccountID)
	assert.Equal(t, "a@x.com", id.Email)
	assert.Equal(t, "octo", id.Name)
	assert.Nil(t, id.Expiry)
}

func TestGitHub_NoEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": "at", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 7, "login": "ghost"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := oauth.NewGitHub("cid", "s", "", oauth.WithEndpoint(endpoint(srv)), oauth.WithAPIBase(srv.URL))
	_, err := g.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, oauth.ErrNoEmail)
}
