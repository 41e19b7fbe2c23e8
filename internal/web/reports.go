package web

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/report"
	"github.com/erazemk/lombard/internal/session"
)

// Report query parameters.
const (
	paramSearch   = "q"
	paramName     = "name"
	paramNRC      = "nrc"
	paramType     = "type"
	paramMin      = "min"
	paramMax      = "max"
	paramPawnFrom = "pawnFrom"
	paramPawnTo   = "pawnTo"
	paramDueFrom  = "dueFrom"
	paramDueTo    = "dueTo"
	paramOutFrom  = "outFrom"
	paramOutTo    = "outTo"
	paramOutBy    = "by"
	paramSort     = "sort"
	paramDir      = "dir"
	paramSize     = "size"
	paramPage     = "page"
)

// parseFilter reads the advanced search. Malformed values do not filter.
func parseFilter(q url.Values) report.Filter {
	f := report.Filter{
		CustomerName: strings.TrimSpace(q.Get(paramName)),
		CustomerNRC:  strings.TrimSpace(q.Get(paramNRC)),
		CheckedOutBy: strings.TrimSpace(q.Get(paramOutBy)),
	}
	if c, ok := model.ParseCategory(q.Get(paramType)); ok && c.Valid() {
		f.ItemType = c
	}
	f.MinAmount, _ = strconv.ParseFloat(strings.TrimSpace(q.Get(paramMin)), 64)
	f.MaxAmount, _ = strconv.ParseFloat(strings.TrimSpace(q.Get(paramMax)), 64)
	date := func(key string) model.Date {
		d, err := model.ParseDate(strings.TrimSpace(q.Get(key)))
		if err != nil {
			return model.Date{}
		}
		return d
	}
	f.PawnFrom, f.PawnTo = date(paramPawnFrom), date(paramPawnTo)
	f.DueFrom, f.DueTo = date(paramDueFrom), date(paramDueTo)
	f.CheckedOutFrom, f.CheckedOutTo = date(paramOutFrom), date(paramOutTo)
	return f
}

// reportEngine builds the engine state described by the query.
func (s *Server) reportEngine(q url.Values, rows []model.ReportItem) *report.Engine {
	e := report.New(report.WithToday(s.today), report.WithLanguage(s.Language))
	e.Replace(rows)
	e.SetSearch(q.Get(paramSearch))
	e.SetFilter(parseFilter(q))
	if col, ok := report.ParseColumn(q.Get(paramSort)); ok {
		e.SetSort(col, report.Direction(q.Get(paramDir)))
	}
	if size, err := strconv.Atoi(q.Get(paramSize)); err == nil {
		e.SetPageSize(size)
	}
	if p, err := strconv.Atoi(q.Get(paramPage)); err == nil {
		e.SetPage(p)
	}
	return e
}

type reportsPage struct {
	PageData
	View       report.View
	Query      url.Values
	Columns    []report.Column
	PageSizes  []int
	Categories []model.Category
}

// with returns the current query with key set to value.
func (p *reportsPage) with(key, value string) url.Values {
	q := url.Values{}
	for k, vs := range p.Query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set(key, value)
	return q
}

// SortURL links to the report sorted by col. Sorting by the current column
// flips the direction.
func (p *reportsPage) SortURL(col report.Column) string {
	dir := report.Asc
	if p.View.SortColumn == col && p.View.SortDir == report.Asc {
		dir = report.Desc
	}
	q := p.with(paramSort, string(col))
	q.Set(paramDir, string(dir))
	q.Del(paramPage)
	return "/reports?" + q.Encode()
}

// PageURL links to page n.
func (p *reportsPage) PageURL(n int) string {
	return "/reports?" + p.with(paramPage, strconv.Itoa(n)).Encode()
}

// ExportURL links to the spreadsheet of the current page or all rows.
func (p *reportsPage) ExportURL(scope string) string {
	q := p.with("scope", scope)
	q.Set(paramPage, strconv.Itoa(p.View.Page))
	return "/reports/export.xlsx?" + q.Encode()
}

// Arrow marks the sorted column.
func (p *reportsPage) Arrow(col report.Column) string {
	if p.View.SortColumn != col {
		return ""
	}
	if p.View.SortDir == report.Desc {
		return "▼"
	}
	return "▲"
}

// ReportsPage handles GET /reports.
func (s *Server) ReportsPage(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	ctx, done := s.start(r, "reports")
	defer done()

	rows, err := s.backend(r).Reports(ctx)
	if err != nil {
		if st.unauthorized {
			s.handleBackendError(w, r, err, session.LoginPath)
			return
		}
		slog.Error("failed to load report", "error", err)
		st.notifier.Error("Error", userMessage(err))
	}

	q := r.URL.Query()
	e := s.reportEngine(q, rows)
	s.Templates.Render(w, http.StatusOK, "reports.html", &reportsPage{
		PageData:   page(r, "Reports"),
		View:       e.View(),
		Query:      q,
		Columns:    report.Columns(),
		PageSizes:  report.PageSizes,
		Categories: model.Categories(),
	})
}

// ReportsExport handles GET /reports/export.xlsx. scope=page exports the
// current page; anything else exports every filtered row.
func (s *Server) ReportsExport(w http.ResponseWriter, r *http.Request) {
	ctx, done := s.start(r, "reports")
	defer done()

	rows, err := s.backend(r).Reports(ctx)
	if err != nil {
		s.handleBackendError(w, r, err, "/reports")
		return
	}

	q := r.URL.Query()
	e := s.reportEngine(q, rows)
	out := e.Filtered()
	if q.Get("scope") == "page" {
		out = e.CurrentPage()
	}

	var buf bytes.Buffer
	if err := report.Export(&buf, out, e.Today()); err != nil {
		slog.Error("failed to export report", "error", err)
		stateFrom(r).notifier.Error("Error", "Export failed")
		http.Redirect(w, r, "/reports", http.StatusSeeOther)
		return
	}

	name := fmt.Sprintf("pawn-report-%s.xlsx", e.Today())
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("failed to write export", "error", err)
	}
	slog.Info("report exported", "user", userEmail(r), "rows", len(out))
}
