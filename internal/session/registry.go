package session

import (
	"errors"
	"sync"
	"time"

	"broker-bridgev1/pkg/mofsl"
)

// ErrSessionExpired means the account has no live session in the registry.
var ErrSessionExpired = errors.New("session expired")

// Session is one authenticated account: the broker's opaque token plus the
// account identity the token was issued for. Immutable once registered.
type Session struct {
	ClientCode string
	APIKey     string
	Token      string
	CreatedAt  time.Time
}

// Auth returns the per-request auth block for this session.
func (s *Session) Auth() mofsl.Auth {
	return mofsl.Auth{APIKey: s.APIKey, ClientCode: s.ClientCode, Token: s.Token}
}

// Registry is the process-wide session store, keyed by client code. At most
// one live session per account: Register overwrites any prior entry, so a
// re-login invalidates the old token locally.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register stores the session, replacing any existing entry for the account.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	r.sessions[s.ClientCode] = s
	r.mu.Unlock()
}

// Lookup returns the live session for an account, or ErrSessionExpired.
func (r *Registry) Lookup(clientCode string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[clientCode]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Revoke removes the account's entry unconditionally. Removing an absent
// entry is a no-op.
func (r *Registry) Revoke(clientCode string) {
	r.mu.Lock()
	delete(r.sessions, clientCode)
	r.mu.Unlock()
}

// Count returns the number of live sessions, for metrics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
