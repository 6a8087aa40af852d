// Package credentials stores the shared bearer credentials used by outreach,
// decision and goal nodes.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Kind names a credential.
type Kind string

const (
	KindMail     Kind = "mail"
	KindCalendar Kind = "calendar"
)

// ErrUnknownKind is returned for credential kinds other than mail and calendar.
var ErrUnknownKind = errors.New("unknown credential kind")

// ParseKind validates a credential kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindMail, KindCalendar:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Store holds one credential per kind. Get returns an empty string when the
// credential is not connected.
type Store interface {
	Get(ctx context.Context, kind Kind) (string, error)
	Set(ctx context.Context, kind Kind, token string) error
	Delete(ctx context.Context, kind Kind) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[Kind]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[Kind]string)}
}

func (s *MemoryStore) Get(_ context.Context, kind Kind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tokens[kind], nil
}

func (s *MemoryStore) Set(_ context.Context, kind Kind, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[kind] = token

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, kind)

	return nil
}
