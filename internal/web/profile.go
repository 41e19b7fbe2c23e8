package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/lombard/internal/client"
	"github.com/erazemk/lombard/internal/imaging"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/session"
)

type profilePage struct {
	PageData
	Data    client.ProfileData
	Genders []string
}

func (s *Server) renderProfile(w http.ResponseWriter, r *http.Request, status int, data client.ProfileData, errMsg string) {
	pd := page(r, "Profile")
	if errMsg != "" {
		pd.Flash = &Flash{Kind: "error", Title: "Error", Message: errMsg}
	}
	s.Templates.Render(w, status, "profile.html", &profilePage{
		PageData: pd,
		Data:     data,
		Genders:  []string{model.GenderMale, model.GenderFemale, model.GenderOther},
	})
}

// ProfilePage handles GET /profile.
func (s *Server) ProfilePage(w http.ResponseWriter, r *http.Request) {
	ctx, done := s.start(r, "profile")
	defer done()

	data, err := s.backend(r).ProfileData(ctx)
	if err != nil {
		s.handleBackendError(w, r, err, session.LandingPath)
		return
	}
	s.renderProfile(w, r, http.StatusOK, *data, "")
}

// ProfileSubmit handles POST /profile. A picture, when attached, is
// uploaded before the profile fields are saved.
func (s *Server) ProfileSubmit(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.renderProfile(w, r, http.StatusRequestEntityTooLarge, client.ProfileData{}, "Picture must be at most 5 MB")
		return
	}

	update := client.ProfileUpdate{
		Name:   strings.TrimSpace(r.FormValue("name")),
		NRC:    strings.ToUpper(strings.TrimSpace(r.FormValue("nrc"))),
		Phone:  strings.Join(strings.Fields(r.FormValue("phone")), ""),
		Gender: r.FormValue("gender"),
	}
	dob, dobErr := model.ParseDate(strings.TrimSpace(r.FormValue("dob")))
	update.DOB = dob

	current := client.ProfileData{Profile: model.Profile{
		Name: update.Name, NRC: update.NRC, Phone: update.Phone, DOB: dob, Gender: update.Gender,
	}}
	if u := currentUser(r); u != nil {
		current.User = *u
		current.Profile.Email = u.Email
	}
	if dobErr != nil {
		s.renderProfile(w, r, http.StatusUnprocessableEntity, current, "Invalid date of birth")
		return
	}
	if err := current.Profile.Validate(); err != nil {
		s.renderProfile(w, r, http.StatusUnprocessableEntity, current, capitalize(err.Error()))
		return
	}

	ctx, done := s.start(r, "profile")
	defer done()
	c := s.backend(r)

	if file, header, err := r.FormFile("picture"); err == nil {
		err = c.UploadPicture(ctx, header.Filename, file)
		file.Close()
		if err != nil {
			if st.unauthorized {
				s.handleBackendError(w, r, err, session.LoginPath)
				return
			}
			s.renderProfile(w, r, http.StatusBadRequest, current, userMessage(err))
			return
		}
		slog.Info("profile picture uploaded", "user", userEmail(r))
	}

	profile, err := c.UpdateProfile(ctx, update)
	if err != nil {
		if st.unauthorized {
			s.handleBackendError(w, r, err, session.LoginPath)
			return
		}
		s.renderProfile(w, r, http.StatusBadRequest, current, userMessage(err))
		return
	}

	if u := currentUser(r); u != nil && u.Name != profile.Name {
		u.Name = profile.Name
		if err := st.session.SetUser(u); err != nil {
			slog.Error("failed to update session user", "error", err)
		}
	}
	st.notifier.Success("Saved", "Profile updated.", nil)
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// ProfilePicture handles GET /profile/picture by proxying the backend.
func (s *Server) ProfilePicture(w http.ResponseWriter, r *http.Request) {
	ctx, done := s.start(r, "picture")
	defer done()

	data, mime, err := s.backend(r).Picture(ctx)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		if stateFrom(r).unauthorized {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		slog.Error("failed to get profile picture", "error", err)
		http.Error(w, "internal error", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write image response", "error", err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
