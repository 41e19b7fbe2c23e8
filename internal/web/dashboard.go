package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/lombard/internal/client"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/session"
)

type categoryCount struct {
	Category model.Category
	Count    int
}

// Dashboard handles GET /dashboard.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	ctx, done := s.start(r, "stats")
	defer done()

	stats, err := s.backend(r).Stats(ctx)
	if err != nil {
		if st.unauthorized {
			s.handleBackendError(w, r, err, session.LoginPath)
			return
		}
		slog.Error("failed to load dashboard stats", "error", err)
		st.notifier.Error("Error", userMessage(err))
		stats = &client.Stats{}
	}

	var counts []categoryCount
	for _, c := range model.Categories() {
		counts = append(counts, categoryCount{Category: c, Count: stats.ByCategory[c]})
	}

	s.Templates.Render(w, http.StatusOK, "dashboard.html", &struct {
		PageData
		Stats      *client.Stats
		ByCategory []categoryCount
	}{
		PageData:   page(r, "Dashboard"),
		Stats:      stats,
		ByCategory: counts,
	})
}
