package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"golang.org/x/text/language"

	"github.com/erazemk/lombard/internal/listing"
	"github.com/erazemk/lombard/internal/schema"
	"github.com/erazemk/lombard/internal/session"
	"github.com/erazemk/lombard/internal/task"
	webembed "github.com/erazemk/lombard/web"
)

// Options configure the console. Zero values select defaults.
type Options struct {
	// BackendURL is the API base, e.g. http://127.0.0.1:8080/api/v1.
	BackendURL string
	Timeout    time.Duration
	// Transport is the round tripper under the session transport.
	Transport     http.RoundTripper
	Schema        *schema.Registry
	Tasks         *task.Registry
	PageSize      int
	SessionTTL    time.Duration
	SecureCookies bool
	// CookieSecret keys the session cookie. Without one a random key is
	// used and sessions do not survive a restart.
	CookieSecret []byte
	Language     language.Tag
	Now          func() time.Time
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(opts Options) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Templates:     templates,
		BackendURL:    opts.BackendURL,
		Timeout:       opts.Timeout,
		Transport:     opts.Transport,
		Schema:        opts.Schema,
		Tasks:         opts.Tasks,
		PageSize:      opts.PageSize,
		SessionTTL:    opts.SessionTTL,
		SecureCookies: opts.SecureCookies,
		Language:      opts.Language,
		Now:           opts.Now,
	}
	if s.Timeout <= 0 {
		s.Timeout = 15 * time.Second
	}
	if s.Schema == nil {
		s.Schema = schema.Default()
	}
	if s.Tasks == nil {
		s.Tasks = task.NewRegistry()
	}
	if s.PageSize <= 0 {
		s.PageSize = listing.DefaultPageSize
	}
	if s.SessionTTL <= 0 {
		s.SessionTTL = session.DefaultTTL
	}
	if s.Language == language.Und {
		s.Language = language.English
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	s.Lists = listing.NewCache(256, s.SessionTTL)

	secret := opts.CookieSecret
	if len(secret) == 0 {
		slog.Warn("no cookie secret configured, sessions end on restart")
		secret = securecookie.GenerateRandomKey(32)
		if secret == nil {
			return nil, fmt.Errorf("generating cookie secret")
		}
	}
	s.Cookies = NewCookieCodec(secret, s.SessionTTL)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	r.Group(func(r chi.Router) {
		r.Use(s.SessionMiddleware)

		r.Post("/logout", s.Logout)

		// Public routes.
		r.Group(func(r chi.Router) {
			r.Use(s.RequireNoSession)

			r.Get("/login", s.LoginPage)
			r.Post("/login", s.LoginSubmit)
			r.Get("/signup", s.SignupPage)
			r.Post("/signup", s.SignupSubmit)
			r.Post("/signup/send-otp", s.SignupSendOTP)
			r.Post("/signup/verify", s.SignupVerify)
			r.Get("/forgot-password", s.ForgotPage)
			r.Post("/forgot-password", s.ForgotSubmit)
			r.Post("/forgot-password/verify", s.ForgotVerify)
			r.Post("/forgot-password/reset", s.ForgotReset)
		})

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(s.RequireSession)

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, session.LandingPath, http.StatusSeeOther)
			})
			r.Get("/dashboard", s.Dashboard)

			r.Get("/pawn-items", s.PawnItemsPage)
			r.Get("/pawn-items/new", s.NewPawnItemPage)
			r.Post("/pawn-items/new", s.NewPawnItemSubmit)
			r.Get("/pawn-items/{id}", s.PawnItemPage)
			r.Get("/pawn-items/{id}/edit", s.EditPawnItemPage)
			r.Post("/pawn-items/{id}/edit", s.EditPawnItemSubmit)
			r.Post("/pawn-items/{id}/delete", s.DeletePawnItemSubmit)
			r.Post("/pawn-items/{id}/redeem", s.RedeemPawnItemSubmit)

			r.Get("/reports", s.ReportsPage)
			r.Get("/reports/export.xlsx", s.ReportsExport)

			r.Get("/profile", s.ProfilePage)
			r.Post("/profile", s.ProfileSubmit)
			r.Get("/profile/picture", s.ProfilePicture)
		})
	})

	return r, nil
}
