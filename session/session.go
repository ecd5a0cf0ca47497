// Package session keeps per-client state between requests in a server-side store keyed by a
// cookie, and builds multi-step flows on top of it.
package session

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/advdv/jsgi"
	"github.com/dchest/uniuri"
)

// DefaultCookieName names the session cookie when no name is configured.
const DefaultCookieName = "jsgi_session"

// Session is the state of one client. It is safe for concurrent use.
type Session struct {
	ID string

	mu       sync.Mutex
	values   map[string]any
	lastSeen time.Time
}

func newSession() *Session {
	return &Session{ID: uniuri.NewLen(32), values: map[string]any{}, lastSeen: time.Now()}
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores v under key.
func (s *Session) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Delete removes key.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Values returns a copy of all values.
func (s *Session) Values() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values)
}

// Store keeps sessions.
type Store interface {
	Load(ctx context.Context, id string) (*Session, bool)
	Create(ctx context.Context) *Session
}

// MemoryStore keeps sessions in process memory. Sessions not used for longer than the TTL are
// dropped on access.
type MemoryStore struct {
	ttl      time.Duration
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore inits a memory store. A ttl of zero keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, sessions: map[string]*Session{}}
}

// Load returns the live session with the given id.
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ttl > 0 && time.Since(s.lastSeen) > m.ttl {
		delete(m.sessions, id)
		return nil, false
	}
	s.lastSeen = time.Now()
	return s, true
}

// Create starts a new session.
func (m *MemoryStore) Create(context.Context) *Session {
	s := newSession()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type ctxKey struct{}

// Middleware returns middleware that attaches the client's session to the context, creating
// it when the request carries no valid session cookie. New sessions are announced with a
// Set-Cookie header.
func Middleware(store Store, cookieName string) jsgi.Middleware {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			var sess *Session
			if id := cookieValue(req, cookieName); id != "" {
				sess, _ = store.Load(ctx, id)
			}

			created := sess == nil
			if created {
				sess = store.Create(ctx)
			}

			resp, err := next.ServeJSGI(context.WithValue(ctx, ctxKey{}, sess), req)
			if created && resp != nil && resp.Async() == nil {
				resp.Headers.Add("Set-Cookie", (&http.Cookie{
					Name:     cookieName,
					Value:    sess.ID,
					Path:     "/",
					HttpOnly: true,
					Secure:   req.Scheme == "https",
					SameSite: http.SameSiteLaxMode,
				}).String())
			}
			return resp, err
		})
	}
}

func cookieValue(req *jsgi.Request, name string) string {
	for _, line := range req.Headers.Values("Cookie") {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == name {
				return c.Value
			}
		}
	}
	return ""
}

// From returns the session attached by [Middleware], or nil.
func From(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
