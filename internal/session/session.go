// Package session holds per-browser authenticated state and the
// login/logout/credential-change operations that create and destroy it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"budget/internal/cache"
	"budget/internal/core"
)

// Session is the authenticated state of one browser. Role is captured at
// login; the credential snapshot is refreshed on every page load.
type Session struct {
	ID        string
	User      string
	Role      core.Role
	CreatedAt time.Time

	mu    sync.Mutex
	creds core.Credentials
	flash string
}

// Credentials returns the latest snapshot. Callers must not mutate it.
func (s *Session) Credentials() core.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

func (s *Session) setCredentials(c core.Credentials) {
	s.mu.Lock()
	s.creds = c
	s.mu.Unlock()
}

// SetFlash stores a one-shot message for the next rendered page.
func (s *Session) SetFlash(msg string) {
	s.mu.Lock()
	s.flash = msg
	s.mu.Unlock()
}

// TakeFlash returns and clears the pending message.
func (s *Session) TakeFlash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.flash
	s.flash = ""
	return msg
}

// Registry maps opaque session ids to sessions. Entries expire after ttl.
type Registry struct {
	sessions *cache.LRUCache[*Session]
	now      func() time.Time
}

const maxSessions = 10000

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: cache.NewLRUCache[*Session](maxSessions, ttl),
		now:      time.Now,
	}
}

func (r *Registry) create(user string, role core.Role, creds core.Credentials) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		User:      user,
		Role:      role,
		CreatedAt: r.now(),
		creds:     creds,
	}
	r.sessions.Set(s.ID, s)
	return s
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	return r.sessions.Get(id)
}

// Destroy ends one session; unknown ids are ignored.
func (r *Registry) Destroy(id string) {
	r.sessions.Delete(id)
}

// DestroyUser ends every session of user and returns how many ended.
func (r *Registry) DestroyUser(user string) int {
	return r.sessions.DeleteFunc(func(_ string, s *Session) bool { return s.User == user })
}

// CleanExpired lets a cache.Manager sweep expired sessions.
func (r *Registry) CleanExpired() int {
	return r.sessions.CleanExpired()
}

func (r *Registry) Size() int { return r.sessions.Size() }

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
