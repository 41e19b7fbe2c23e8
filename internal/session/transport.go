package session

import (
	"net/http"
	"strings"
)

// PublicEndpoints are the backend paths sent without a credential.
var PublicEndpoints = []string{
	"/auth/user/login",
	"/auth/user/send-otp",
	"/auth/user/verify-otp",
	"/auth/user/sign-up",
	"/auth/user/forgot-password",
	"/auth/user/reset-password",
}

// IsPublic reports whether path ends in one of the public endpoints.
func IsPublic(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, ep := range PublicEndpoints {
		if strings.HasSuffix(path, ep) {
			return true
		}
	}
	return false
}

// Transport attaches the session's bearer token to outgoing requests and
// clears the session on any 401 response.
type Transport struct {
	Session *Session
	Base    http.RoundTripper
	// OnUnauthorized runs after a 401 cleared the session.
	OnUnauthorized func()
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !IsPublic(req.URL.Path) {
		if token := t.Session.Token(); token != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		t.Session.Clear()
		if t.OnUnauthorized != nil {
			t.OnUnauthorized()
		}
	}
	return resp, nil
}
