package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/skillswap/internal/auth"
	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/soyeahso/skillswap/internal/logging"
	"golang.org/x/oauth2"
)

// AuthClient implements auth.Authenticator. It must be given a plain HTTP
// client so that auth endpoints never trigger a refresh themselves.
type AuthClient struct {
	baseURL string
	http    *http.Client
	log     *logging.Logger
}

var _ auth.Authenticator = (*AuthClient)(nil)

// NewAuthClient creates an auth endpoint client rooted at baseURL.
func NewAuthClient(baseURL string, hc *http.Client, log *logging.Logger) *AuthClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		log:     log.Sub("api"),
	}
}

type grantResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int64       `json:"expiresIn,omitempty"`
	User         domain.User `json:"user"`
}

func (g grantResponse) grant() (auth.Grant, error) {
	if g.AccessToken == "" {
		return auth.Grant{}, errors.New("response carried no access token")
	}
	tok := &oauth2.Token{
		AccessToken:  g.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: g.RefreshToken,
	}
	if g.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(g.ExpiresIn) * time.Second)
	}
	return auth.Grant{Token: tok, User: g.User}, nil
}

// Login calls POST /auth/login.
func (c *AuthClient) Login(ctx context.Context, creds auth.Credentials) (auth.Grant, error) {
	var resp grantResponse
	if err := doJSON(ctx, c.http, c.log, http.MethodPost, joinURL(c.baseURL, "auth", "login"), creds, &resp); err != nil {
		return auth.Grant{}, err
	}
	return resp.grant()
}

// Refresh calls POST /auth/refresh.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (auth.Grant, error) {
	in := map[string]string{"refreshToken": refreshToken}
	var resp grantResponse
	if err := doJSON(ctx, c.http, c.log, http.MethodPost, joinURL(c.baseURL, "auth", "refresh"), in, &resp); err != nil {
		return auth.Grant{}, err
	}
	return resp.grant()
}
