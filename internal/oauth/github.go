package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/tazhibayda/identity-service/internal/domain"
	"golang.org/x/oauth2"
	ggithub "golang.org/x/oauth2/github"
)

const githubAPI = "https://api.github.com"

type GitHubOAuth struct {
	cfg     *oauth2.Config
	apiBase string
}

func NewGitHub(clientID, clientSecret, redirectURI string, opts ...Option) *GitHubOAuth {
	o := collect(opts)
	ep := ggithub.Endpoint
	if o.endpoint != nil {
		ep = *o.endpoint
	}
	api := githubAPI
	if o.apiBase != "" {
		api = strings.TrimRight(o.apiBase, "/")
	}
	return &GitHubOAuth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     ep,
		},
		apiBase: api,
	}
}

func (g *GitHubOAuth) Name() string { return domain.ProviderGitHub }

func (g *GitHubOAuth) AuthURL(state string) string { return g.cfg.AuthCodeURL(state) }

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange reads /user and, when the profile e-mail is private, falls back
// to the primary verified address from /user/emails.
func (g *GitHubOAuth) Exchange(ctx context.Context, code string) (*Identity, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github exchange: %w", err)
	}
	client := g.cfg.Client(ctx, tok)

	var u githubUser
	if err := g.getJSON(ctx, client, "/user", &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("github: empty user id")
	}

	id := &Identity{
		Provider:  domain.ProviderGitHub,
		AccountID: strconv.FormatInt(u.ID, 10),
		Email:     u.Email,
		Name:      u.Name,
	}
	if id.Name == "" {
		id.Name = u.Login
	}

	var emails []githubEmail
	if err := g.getJSON(ctx, client, "/user/emails", &emails); err == nil {
		for _, e := range emails {
			if e.Primary && e.Verified {
				id.Email, id.EmailVerified = e.Email, true
				break
			}
		}
	}
	if id.Email == "" {
		return nil, ErrNoEmail
	}
	id.RefreshToken, id.Expiry = tokenFields(tok)
	return id, nil
}

func (g *GitHubOAuth) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
