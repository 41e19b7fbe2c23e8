package web

import (
	"crypto/sha256"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

// CookieName is the cookie holding the console session values.
const CookieName = "lombard_session"

// keySID is the browser identity used for task keys and the list cache. It
// survives session.Clear.
const keySID = "sid"

// NewCookieCodec returns the codec that signs and encrypts the session
// cookie. The hash and block keys are derived from secret. Cookies older
// than maxAge are rejected.
func NewCookieCodec(secret []byte, maxAge time.Duration) *securecookie.SecureCookie {
	hashKey := sha256.Sum256(append([]byte("lombard cookie hash:"), secret...))
	blockKey := sha256.Sum256(append([]byte("lombard cookie block:"), secret...))
	codec := securecookie.New(hashKey[:], blockKey[:])
	codec.SetSerializer(securecookie.JSONEncoder{})
	if maxAge > 0 {
		codec.MaxAge(int(maxAge.Seconds()))
	}
	return codec
}

// CookieStore is a session.Store kept in a single signed and encrypted
// cookie. Changes are written when the response header is sent.
type CookieStore struct {
	mu     sync.Mutex
	codec  *securecookie.SecureCookie
	values map[string]string
	dirty  bool
	secure bool
	maxAge time.Duration
}

// NewCookieStore decodes the session cookie of r. A missing cookie or one
// the codec rejects yields an empty store.
func NewCookieStore(r *http.Request, codec *securecookie.SecureCookie, secure bool, maxAge time.Duration) *CookieStore {
	cs := &CookieStore{codec: codec, values: map[string]string{}, secure: secure, maxAge: maxAge}
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return cs
	}
	if err := codec.Decode(CookieName, c.Value, &cs.values); err != nil {
		slog.Warn("rejected session cookie", "error", err)
		cs.values = map[string]string{}
		cs.dirty = true
	}
	return cs
}

func (cs *CookieStore) Get(key string) (string, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	v, ok := cs.values[key]
	return v, ok
}

func (cs *CookieStore) Set(key, value string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cur, ok := cs.values[key]; ok && cur == value {
		return
	}
	cs.values[key] = value
	cs.dirty = true
}

func (cs *CookieStore) Delete(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.values[key]; ok {
		delete(cs.values, key)
		cs.dirty = true
	}
}

// ID returns the browser identity, creating one on first use.
func (cs *CookieStore) ID() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if id := cs.values[keySID]; id != "" {
		return id
	}
	id := uuid.NewString()
	cs.values[keySID] = id
	cs.dirty = true
	return id
}

// Write sets the cookie on w if the store changed.
func (cs *CookieStore) Write(w http.ResponseWriter) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.dirty {
		return
	}
	cs.dirty = false

	value, err := cs.codec.Encode(CookieName, cs.values)
	if err != nil {
		slog.Error("failed to encode session cookie", "error", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cs.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cs.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// cookieWriter writes the session cookie before the first header write.
type cookieWriter struct {
	http.ResponseWriter
	store   *CookieStore
	written bool
}

func (cw *cookieWriter) flush() {
	if cw.written {
		return
	}
	cw.written = true
	cw.store.Write(cw.ResponseWriter)
}

func (cw *cookieWriter) WriteHeader(code int) {
	cw.flush()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *cookieWriter) Write(b []byte) (int, error) {
	cw.flush()
	return cw.ResponseWriter.Write(b)
}

func (cw *cookieWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
