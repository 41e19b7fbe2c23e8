package session

// Redirect targets of the route guards.
const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
)

// Decision is the outcome of a route guard.
type Decision struct {
	Allow    bool
	Redirect string
}

// RequireSession admits navigation to attempted only with a valid session.
// Otherwise it remembers attempted and redirects to the login page.
func RequireSession(s *Session, attempted string) Decision {
	if s.IsAuthenticated() {
		return Decision{Allow: true}
	}
	s.RememberRedirect(attempted)
	return Decision{Redirect: LoginPath}
}

// RequireNoSession admits navigation only without a valid session, sending
// signed-in users to the landing page.
func RequireNoSession(s *Session) Decision {
	if !s.IsAuthenticated() {
		return Decision{Allow: true}
	}
	return Decision{Redirect: LandingPath}
}
