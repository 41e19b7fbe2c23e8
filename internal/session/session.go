// Package session keeps the console's backend credential: a bearer token
// with a fixed lifetime plus the cached user, persisted in a key-value store.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Storage keys.
const (
	KeyToken    = "auth_token"
	KeyUser     = "user"
	KeyRedirect = "redirectUrl"
)

// DefaultTTL is how long a session stays valid after it is issued.
const DefaultTTL = 12 * time.Hour

// Store persists session values.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryStore is a Store backed by a map. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

type tokenData struct {
	Token      string `json:"token"`
	Expiration int64  `json:"expiration"` // epoch milliseconds
}

// Session is the credential of one console user. It is valid while both
// token and user are stored and the expiration has not passed.
type Session struct {
	store Store
	now   func() time.Time
	ttl   time.Duration
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Session) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New returns a session over store. Call Init before use.
func New(store Store, opts ...Option) *Session {
	s := &Session{store: store, now: time.Now, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init drops stored state that is expired, malformed or incomplete.
func (s *Session) Init() {
	if _, ok := s.store.Get(KeyToken); !ok {
		s.store.Delete(KeyUser)
		return
	}
	if s.Token() == "" {
		return
	}
	if _, ok := s.store.Get(KeyUser); !ok {
		s.Clear()
	}
}

// Teardown ends the session.
func (s *Session) Teardown() {
	s.Clear()
}

// Begin stores a freshly issued token and the user it belongs to.
func (s *Session) Begin(token string, user any) error {
	if token == "" {
		return fmt.Errorf("beginning session: empty token")
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding session user: %w", err)
	}
	if err := s.storeToken(token); err != nil {
		return err
	}
	s.store.Set(KeyUser, string(raw))
	return nil
}

func (s *Session) storeToken(token string) error {
	raw, err := json.Marshal(tokenData{
		Token:      token,
		Expiration: s.now().Add(s.ttl).UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encoding session token: %w", err)
	}
	s.store.Set(KeyToken, string(raw))
	return nil
}

// Token returns the stored token if it is still valid. An expired or
// malformed token clears the whole session and yields "".
func (s *Session) Token() string {
	raw, ok := s.store.Get(KeyToken)
	if !ok {
		return ""
	}
	var td tokenData
	if err := json.Unmarshal([]byte(raw), &td); err != nil || td.Token == "" {
		s.Clear()
		return ""
	}
	if s.now().UnixMilli() >= td.Expiration {
		s.Clear()
		return ""
	}
	return td.Token
}

// ExpiresAt returns when the stored token expires, or the zero time.
func (s *Session) ExpiresAt() time.Time {
	raw, ok := s.store.Get(KeyToken)
	if !ok {
		return time.Time{}
	}
	var td tokenData
	if err := json.Unmarshal([]byte(raw), &td); err != nil {
		return time.Time{}
	}
	return time.UnixMilli(td.Expiration)
}

// IsAuthenticated reports whether a valid token and a user are stored.
func (s *Session) IsAuthenticated() bool {
	if s.Token() == "" {
		return false
	}
	_, ok := s.store.Get(KeyUser)
	return ok
}

// User decodes the stored user into v. Malformed content clears the session.
func (s *Session) User(v any) error {
	raw, ok := s.store.Get(KeyUser)
	if !ok {
		return fmt.Errorf("no session user")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.Clear()
		return fmt.Errorf("decoding session user: %w", err)
	}
	return nil
}

// SetUser replaces the cached user, e.g. after a profile update.
func (s *Session) SetUser(user any) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding session user: %w", err)
	}
	s.store.Set(KeyUser, string(raw))
	return nil
}

// Clear removes every session key.
func (s *Session) Clear() {
	s.store.Delete(KeyToken)
	s.store.Delete(KeyUser)
	s.store.Delete(KeyRedirect)
}

// RememberRedirect records the URL to return to after login.
func (s *Session) RememberRedirect(url string) {
	s.store.Set(KeyRedirect, url)
}

// TakeRedirect returns and forgets the remembered URL, or fallback.
func (s *Session) TakeRedirect(fallback string) string {
	url, ok := s.store.Get(KeyRedirect)
	s.store.Delete(KeyRedirect)
	if !ok || url == "" {
		return fallback
	}
	return url
}
