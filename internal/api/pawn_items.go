package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/schema"
	"github.com/erazemk/lombard/internal/store"
)

// Duplicate IMEI is reported with this exact message.
const msgDuplicateIMEI = "Duplicate IMEI"

// PawnItemsHandler handles pawn item endpoints.
type PawnItemsHandler struct {
	DB     *sql.DB
	Schema *schema.Registry
	Now    func() time.Time
}

func (h *PawnItemsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// List handles GET /auth/pawn-item?category=&sortBy=.
func (h *PawnItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := model.CategoryAll
	if raw := q.Get("category"); raw != "" {
		c, ok := model.ParseCategory(raw)
		if !ok {
			fail(w, r, http.StatusBadRequest, "Unknown category")
			return
		}
		category = c
	}

	items, err := store.ListPawnItems(r.Context(), h.DB, store.PawnFilter{
		Category: category,
		SortBy:   q.Get("sortBy"),
	})
	if err != nil {
		slog.Error("listing pawn items", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to list pawn items")
		return
	}
	respond(w, r, http.StatusOK, "Pawn items", items)
}

// Get handles GET /auth/pawn-item/{id}.
func (h *PawnItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetPawnItem(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("getting pawn item", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to get pawn item")
		return
	}
	if item == nil {
		fail(w, r, http.StatusNotFound, "Pawn item not found")
		return
	}
	respond(w, r, http.StatusOK, "Pawn item", item)
}

// decodeRequest reads and validates a create or update payload. It writes
// the response on failure.
func (h *PawnItemsHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (model.PawnRequest, bool) {
	var req model.PawnRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	if err := req.Validate(); err != nil {
		fail(w, r, http.StatusBadRequest, err.Error())
		return req, false
	}
	if err := h.requireDetails(req); err != nil {
		fail(w, r, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

// requireDetails checks required and select attributes against the field
// registry of the request's category.
func (h *PawnItemsHandler) requireDetails(req model.PawnRequest) error {
	fields, err := h.Schema.Lookup(req.Category)
	if err != nil {
		return err
	}
	values := map[string]string{}
	if req.Details != nil {
		values = model.DetailValues(req.Details)
	}
	for _, f := range fields {
		v := values[f.Key]
		if v == "" {
			if f.Required {
				return fmt.Errorf("%s is required", f.Label)
			}
			continue
		}
		if f.Input == schema.InputSelect && !f.HasOption(v) {
			return fmt.Errorf("invalid %s", f.Label)
		}
	}
	return nil
}

// Create handles POST /auth/pawn-item.
func (h *PawnItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	item, err := store.CreatePawnItem(r.Context(), h.DB, req, claims.UserID)
	if errors.Is(err, store.ErrDuplicateIMEI) {
		fail(w, r, http.StatusConflict, msgDuplicateIMEI)
		return
	}
	if err != nil {
		slog.Error("creating pawn item", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to create pawn item")
		return
	}

	slog.Info("pawn item created", "user", claims.Email, "item", item.ID, "category", item.Category)
	respond(w, r, http.StatusCreated, "Pawn item created successfully", item)
}

// Update handles PUT /auth/pawn-item/{id}.
func (h *PawnItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id := chi.URLParam(r, "id")
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	item, err := store.UpdatePawnItem(r.Context(), h.DB, id, req)
	switch {
	case errors.Is(err, store.ErrDuplicateIMEI):
		fail(w, r, http.StatusConflict, msgDuplicateIMEI)
		return
	case errors.Is(err, store.ErrNotFound):
		fail(w, r, http.StatusNotFound, "Pawn item not found")
		return
	case err != nil:
		slog.Error("updating pawn item", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to update pawn item")
		return
	}

	slog.Info("pawn item updated", "user", claims.Email, "item", id)
	respond(w, r, http.StatusOK, "Pawn item updated successfully", item)
}

// Delete handles DELETE /auth/pawn-item/{id}. Items are soft-deleted.
func (h *PawnItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id := chi.URLParam(r, "id")

	err := store.DeletePawnItem(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrNotFound) {
		fail(w, r, http.StatusNotFound, "Pawn item not found")
		return
	}
	if err != nil {
		slog.Error("deleting pawn item", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to delete pawn item")
		return
	}

	slog.Info("pawn item deleted", "user", claims.Email, "item", id)
	respond(w, r, http.StatusOK, "Pawn item deleted", nil)
}

// Redeem handles POST /auth/pawn-item/{id}/redeem. The signed-in user is
// recorded as the one who checked the item out.
func (h *PawnItemsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id := chi.URLParam(r, "id")

	item, err := store.RedeemPawnItem(r.Context(), h.DB, id, claims.Name, h.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		fail(w, r, http.StatusNotFound, "Pawn item not found")
		return
	case errors.Is(err, store.ErrNotRedeemable):
		fail(w, r, http.StatusConflict, "Pawn item cannot be redeemed")
		return
	case err != nil:
		slog.Error("redeeming pawn item", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to redeem pawn item")
		return
	}

	slog.Info("pawn item redeemed", "user", claims.Email, "item", id)
	respond(w, r, http.StatusOK, "Pawn item redeemed", item)
}
