package auth

import (
	"sync"

	"golang.org/x/oauth2"
)

// MemoryTokenStore keeps the token pair for the life of the process only.
type MemoryTokenStore struct {
	mu  sync.Mutex
	tok *oauth2.Token
}

// NewMemoryTokenStore creates an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return nil, nil
	}
	cp := *s.tok
	return &cp, nil
}

func (s *MemoryTokenStore) Set(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok == nil {
		s.tok = nil
		return nil
	}
	cp := *tok
	s.tok = &cp
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	return s.Set(nil)
}
