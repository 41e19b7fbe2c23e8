package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/erazemk/lombard/internal/client"
	"github.com/erazemk/lombard/internal/listing"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/schema"
	"github.com/erazemk/lombard/internal/task"
	webembed "github.com/erazemk/lombard/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	printer := message.NewPrinter(language.English)
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleStaff:
				return "Staff"
			default:
				return role
			}
		},
		"statusClass": func(status string) string {
			switch status {
			case model.ReportActive:
				return "ok"
			case model.ReportNearDue:
				return "warn"
			case string(model.StatusExpired), model.ReportOverdue:
				return "bad"
			default:
				return "muted"
			}
		},
		"money": func(v float64) string {
			return printer.Sprintf("%.0f", v)
		},
		"date": func(v any) string {
			switch d := v.(type) {
			case model.Date:
				return d.String()
			case *model.Date:
				if d == nil {
					return ""
				}
				return d.String()
			case time.Time:
				if d.IsZero() {
					return ""
				}
				return d.Format("2006-01-02 15:04")
			case *time.Time:
				if d == nil {
					return ""
				}
				return d.Format("2006-01-02 15:04")
			}
			return ""
		},
		"detail": func(item model.PawnItem, key string) string {
			return model.DetailValues(item.Details)[key]
		},
		"categories": model.Categories,
		"ellipsis":   func(n int) bool { return n == listing.Ellipsis },
		"add":        func(a, b int) int { return a + b },
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"login.html",
		"signup.html",
		"forgot.html",
		"dashboard.html",
		"pawn_items.html",
		"pawn_item_form.html",
		"reports.html",
		"profile.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title string
	User  *model.User
	Flash *Flash
}

// page builds the base data for r, consuming the queued flash.
func page(r *http.Request, title string) PageData {
	st := stateFrom(r)
	pd := PageData{Title: title, Flash: st.notifier.Take()}
	if st.session.IsAuthenticated() {
		pd.User = currentUser(r)
	}
	return pd
}

// Server holds all dependencies for page handlers.
type Server struct {
	Templates     *Templates
	BackendURL    string
	Timeout       time.Duration
	Transport     http.RoundTripper
	Schema        *schema.Registry
	Tasks         *task.Registry
	Lists         *listing.Cache
	Cookies       *securecookie.SecureCookie
	PageSize      int
	SessionTTL    time.Duration
	SecureCookies bool
	Language      language.Tag
	Now           func() time.Time
}

func (s *Server) today() model.Date {
	return model.DateOf(s.Now())
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return n
}

var _ listing.Source = (*client.Client)(nil)
