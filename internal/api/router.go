package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/schema"
)

// Prefix is where the API is mounted.
const Prefix = "/api/v1"

// Options tune the router. Zero values select defaults.
type Options struct {
	Mailer  Mailer
	Limiter *OTPLimiter
	Schema  *schema.Registry
}

// NewRouter creates the API router with all endpoints registered under
// Prefix, plus an unauthenticated /healthz.
func NewRouter(db *sql.DB, jwtSecret string, opts Options) http.Handler {
	if opts.Mailer == nil {
		opts.Mailer = LogMailer{}
	}
	if opts.Limiter == nil {
		opts.Limiter = NewOTPLimiter(DefaultOTPPerEmail, DefaultOTPPerIP, DefaultOTPWindow)
	}
	if opts.Schema == nil {
		opts.Schema = schema.Default()
	}

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, Mailer: opts.Mailer, Limiter: opts.Limiter}
	profileHandler := &ProfileHandler{DB: db}
	pawnHandler := &PawnItemsHandler{DB: db, Schema: opts.Schema}
	reportsHandler := &ReportsHandler{DB: db}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			fail(w, r, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		respond(w, r, http.StatusOK, "ok", nil)
	})

	r.Route(Prefix, func(r chi.Router) {
		// Public: account flows.
		r.Post("/auth/user/login", authHandler.Login)
		r.Post("/auth/user/send-otp", authHandler.SendOTP)
		r.Post("/auth/user/verify-otp", authHandler.VerifyOTP)
		r.Post("/auth/user/sign-up", authHandler.SignUp)
		r.Post("/auth/user/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/user/reset-password", authHandler.ResetPassword)

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtSecret, db))

			r.Post("/auth/user/logout", authHandler.Logout)
			r.Get("/auth/user/profile/getProfileData", profileHandler.GetProfileData)

			r.Get("/profile", profileHandler.Get)
			r.Put("/profile", profileHandler.Update)
			r.Post("/profile/upload-picture", profileHandler.UploadPicture)
			r.Get("/profile/picture", profileHandler.Picture)

			r.Get("/auth/pawn-item", pawnHandler.List)
			r.Post("/auth/pawn-item", pawnHandler.Create)
			r.Get("/auth/pawn-item/{id}", pawnHandler.Get)
			r.Put("/auth/pawn-item/{id}", pawnHandler.Update)
			r.Post("/auth/pawn-item/{id}/redeem", pawnHandler.Redeem)
			r.With(RequireRole(model.RoleAdmin)).Delete("/auth/pawn-item/{id}", pawnHandler.Delete)

			r.Get("/reports", reportsHandler.List)
			r.Get("/reports/stats", reportsHandler.Stats)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			fail(w, r, http.StatusNotFound, "Endpoint not found")
		})
	})

	return r
}
