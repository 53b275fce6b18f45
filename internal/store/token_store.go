package store

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// Fixed storage keys for the session token pair.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyTokenExpiry  = "tokenExpiry"
)

// TokenStore persists the access/refresh pair in client storage.
type TokenStore struct {
	db *DB
}

// NewTokenStore creates a token store using the given database.
func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{db: db}
}

// Get returns the stored token, or nil when nothing is stored.
func (s *TokenStore) Get() (*oauth2.Token, error) {
	access, err := s.db.GetValue(KeyAccessToken)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}

	refresh, err := s.db.GetValue(KeyRefreshToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	tok.RefreshToken = refresh

	expiry, err := s.db.GetValue(KeyTokenExpiry)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if expiry != "" {
		if t, perr := time.Parse(time.RFC3339, expiry); perr == nil {
			tok.Expiry = t
		}
	}
	return tok, nil
}

// Set replaces the stored pair.
func (s *TokenStore) Set(tok *oauth2.Token) error {
	if tok == nil {
		return s.Clear()
	}
	pairs := map[string]string{
		KeyAccessToken:  tok.AccessToken,
		KeyRefreshToken: tok.RefreshToken,
		KeyTokenExpiry:  "",
	}
	if !tok.Expiry.IsZero() {
		pairs[KeyTokenExpiry] = tok.Expiry.UTC().Format(time.RFC3339)
	}
	return s.db.SetValues(pairs)
}

// Clear removes every token key.
func (s *TokenStore) Clear() error {
	return s.db.DeleteValues(KeyAccessToken, KeyRefreshToken, KeyTokenExpiry)
}
