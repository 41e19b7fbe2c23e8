package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/lombard/internal/client"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/session"
	"github.com/erazemk/lombard/internal/task"
)

type webContextKey string

const stateKey webContextKey = "webstate"

// requestState is the per-request console state.
type requestState struct {
	store        *CookieStore
	session      *session.Session
	notifier     *Notifier
	unauthorized bool
}

// SessionMiddleware loads the cookie session and makes it available to
// handlers. The cookie is rewritten only when it changed.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := NewCookieStore(r, s.Cookies, s.SecureCookies, s.SessionTTL)
		sess := session.New(store, session.WithTTL(s.SessionTTL), session.WithClock(s.Now))
		sess.Init()
		store.ID()

		st := &requestState{store: store, session: sess, notifier: &Notifier{store: store}}
		cw := &cookieWriter{ResponseWriter: w, store: store}
		next.ServeHTTP(cw, r.WithContext(context.WithValue(r.Context(), stateKey, st)))
		cw.flush()
	})
}

func stateFrom(r *http.Request) *requestState {
	st, _ := r.Context().Value(stateKey).(*requestState)
	return st
}

// RequireSession redirects to the login page unless the session is valid,
// remembering the attempted URL.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := stateFrom(r)
		d := session.RequireSession(st.session, r.URL.RequestURI())
		if !d.Allow {
			http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireNoSession sends signed-in users to the landing page.
func (s *Server) RequireNoSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := session.RequireNoSession(stateFrom(r).session)
		if !d.Allow {
			http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backend returns an API client carrying the session credential.
func (s *Server) backend(r *http.Request) *client.Client {
	st := stateFrom(r)
	transport := &session.Transport{
		Session:        st.session,
		Base:           s.Transport,
		OnUnauthorized: func() { st.unauthorized = true },
	}
	return client.New(s.BackendURL, &http.Client{Timeout: s.Timeout, Transport: transport})
}

// start runs a backend operation under the task registry. A newer request
// for the same operation in the same browser cancels this one.
func (s *Server) start(r *http.Request, operation string) (context.Context, func()) {
	return s.Tasks.Start(r.Context(), task.Key(stateFrom(r).store.ID(), operation))
}

// currentUser returns the cached user of the session.
func currentUser(r *http.Request) *model.User {
	var u model.User
	if err := stateFrom(r).session.User(&u); err != nil {
		return nil
	}
	return &u
}

// handleBackendError turns a failed backend call into a response. A 401
// already cleared the session and leads to the login page; anything else
// is flashed and redirects to fallback.
func (s *Server) handleBackendError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	st := stateFrom(r)
	if st.unauthorized {
		st.session.RememberRedirect(r.URL.RequestURI())
		http.Redirect(w, r, session.LoginPath, http.StatusSeeOther)
		return
	}
	if errors.Is(err, context.Canceled) {
		slog.Info("backend call cancelled", "path", r.URL.Path)
		return
	}
	slog.Error("backend call failed", "path", r.URL.Path, "error", err)
	st.notifier.Error("Error", userMessage(err))
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

func userMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return model.GenericErrorMessage
}

func userEmail(r *http.Request) string {
	if u := currentUser(r); u != nil {
		return u.Email
	}
	return ""
}
