package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/store"
)

// ReportsHandler serves read-only projections of the pawn book.
type ReportsHandler struct {
	DB    *sql.DB
	Today func() model.Date
}

// List handles GET /reports.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListReportItems(r.Context(), h.DB)
	if err != nil {
		slog.Error("listing report items", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to load report")
		return
	}
	respond(w, r, http.StatusOK, "Report", items)
}

// Stats handles GET /reports/stats.
func (h *ReportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	today := model.Today()
	if h.Today != nil {
		today = h.Today()
	}
	stats, err := store.GetPawnStats(r.Context(), h.DB, today)
	if err != nil {
		slog.Error("computing stats", "error", err)
		fail(w, r, http.StatusInternalServerError, "Failed to load statistics")
		return
	}
	respond(w, r, http.StatusOK, "Statistics", stats)
}
