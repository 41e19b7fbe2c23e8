package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/lombard/internal/imaging"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/store"
)

// ProfileHandler handles the signed-in user's profile.
type ProfileHandler struct {
	DB *sql.DB
}

// ProfileData is the payload of getProfileData: the account and its profile.
type ProfileData struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile"`
}

type updateProfileRequest struct {
	Name   string     `json:"name"`
	NRC    string     `json:"nrc"`
	Phone  string     `json:"phone"`
	DOB    model.Date `json:"dob"`
	Gender string     `json:"gender"`
}

// GetProfileData handles GET /auth/user/profile/getProfileData.
func (h *ProfileHandler) GetProfileData(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("getting user", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	if user == nil {
		fail(w, r, http.StatusNotFound, "User not found")
		return
	}
	profile, err := store.GetProfile(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("getting profile", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	respond(w, r, http.StatusOK, "Profile data", ProfileData{User: user, Profile: profile})
}

// Get handles GET /profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	profile, err := store.GetProfile(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("getting profile", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	if profile == nil {
		fail(w, r, http.StatusNotFound, "Profile not found")
		return
	}
	respond(w, r, http.StatusOK, "Profile", profile)
}

// Update handles PUT /profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	p := model.Profile{
		UserID: claims.UserID,
		Name:   strings.TrimSpace(req.Name),
		NRC:    strings.ToUpper(strings.TrimSpace(req.NRC)),
		Phone:  strings.Join(strings.Fields(req.Phone), ""),
		DOB:    req.DOB,
		Gender: req.Gender,
	}
	if err := p.Validate(); err != nil {
		fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := store.SaveProfile(r.Context(), h.DB, p)
	if errors.Is(err, store.ErrNotFound) {
		fail(w, r, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		slog.Error("saving profile", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to save profile")
		return
	}

	slog.Info("profile updated", "user", claims.Email)
	respond(w, r, http.StatusOK, "Profile updated", saved)
}

// UploadPicture handles POST /profile/upload-picture. The image arrives as
// the multipart field "picture".
func (h *ProfileHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	file, _, err := r.FormFile("picture")
	if err != nil {
		fail(w, r, http.StatusBadRequest, "Picture file required")
		return
	}
	defer file.Close()

	pic, err := imaging.ProcessPicture(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		fail(w, r, http.StatusRequestEntityTooLarge, "Image must be 5 MB or smaller")
		return
	case errors.Is(err, imaging.ErrUnsupported):
		fail(w, r, http.StatusBadRequest, "Only JPEG, PNG and WebP images are accepted")
		return
	case err != nil:
		fail(w, r, http.StatusBadRequest, "Invalid image")
		return
	}

	if err := store.SetProfilePicture(r.Context(), h.DB, claims.UserID, pic.Data, pic.MIME); err != nil {
		slog.Error("storing picture", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to store picture")
		return
	}

	slog.Info("profile picture uploaded", "user", claims.Email, "bytes", len(pic.Data))
	respond(w, r, http.StatusOK, "Picture uploaded", nil)
}

// Picture handles GET /profile/picture and serves the raw image.
func (h *ProfileHandler) Picture(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	data, mime, err := store.GetProfilePicture(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("getting picture", "error", err)
		fail(w, r, http.StatusInternalServerError, model.GenericErrorMessage)
		return
	}
	if len(data) == 0 {
		fail(w, r, http.StatusNotFound, "No picture")
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.Write(data)
}
