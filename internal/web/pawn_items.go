package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erazemk/lombard/internal/client"
	"github.com/erazemk/lombard/internal/form"
	"github.com/erazemk/lombard/internal/listing"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/session"
)

const actionCategory = "category"

func listKey(sid string, c model.Category, k listing.SortKey) string {
	return sid + "/" + string(c) + "/" + string(k)
}

// forgetLists drops every cached list of the browser.
func (s *Server) forgetLists(sid string) {
	for _, c := range append([]model.Category{model.CategoryAll}, model.Categories()...) {
		for _, k := range listing.SortKeys() {
			s.Lists.Forget(listKey(sid, c, k))
		}
	}
}

// PawnItemsPage handles GET /pawn-items.
func (s *Server) PawnItemsPage(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	q := r.URL.Query()

	category, ok := model.ParseCategory(q.Get("category"))
	if !ok {
		category = model.CategoryAll
	}
	e := listing.New(s.PageSize, listing.WithToday(s.today), listing.WithLanguage(s.Language))
	e.SetCategory(category)
	e.SetSort(listing.ParseSortKey(q.Get("sort")))

	ctx, done := s.start(r, "list")
	defer done()

	stale := false
	key := listKey(st.store.ID(), e.View().Category, e.View().Sort)
	if err := s.Lists.Load(ctx, key, e, s.backend(r)); err != nil {
		if st.unauthorized {
			s.handleBackendError(w, r, err, session.LoginPath)
			return
		}
		slog.Error("failed to list pawn items", "error", err)
		st.notifier.Error("Error", userMessage(err))
		stale = true
	}
	e.SetSearch(q.Get("q"))
	e.SetPage(queryInt(r, "page", 1))

	view := e.View()
	s.Templates.Render(w, http.StatusOK, "pawn_items.html", &struct {
		PageData
		View        listing.View
		PageNumbers []int
		SortKeys    []listing.SortKey
		Stale       bool
	}{
		PageData:    page(r, "Pawn items"),
		View:        view,
		PageNumbers: listing.PageNumbers(view.Page, view.TotalPages),
		SortKeys:    listing.SortKeys(),
		Stale:       stale,
	})
}

type formPage struct {
	PageData
	Form       *form.Form
	Errors     map[string]string
	Item       *model.PawnItem
	Action     string
	Categories []model.Category
}

func (s *Server) newForm(r *http.Request, c *client.Client) *form.Form {
	st := stateFrom(r)
	return form.New(s.Schema, c, st.notifier, form.WithRefetch(func(context.Context) {
		s.forgetLists(st.store.ID())
	}))
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, f *form.Form, item *model.PawnItem, action string) {
	title := "New pawn item"
	switch f.Mode() {
	case form.Editing:
		title = "Edit pawn item"
	case form.Viewing:
		title = "Pawn item"
	}
	s.Templates.Render(w, status, "pawn_item_form.html", &formPage{
		PageData:   page(r, title),
		Form:       f,
		Errors:     f.Errors(),
		Item:       item,
		Action:     action,
		Categories: model.Categories(),
	})
}

// formValues returns the submitted inputs, first value per key.
func formValues(r *http.Request) map[string]string {
	out := map[string]string{}
	for key, vs := range r.PostForm {
		if len(vs) > 0 && key != "_action" {
			out[key] = vs[0]
		}
	}
	return out
}

// submitForm fills f from the request and submits it, unless the user only
// switched the category.
func (s *Server) submitForm(w http.ResponseWriter, r *http.Request, f *form.Form, item *model.PawnItem, action string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	f.Fill(formValues(r))
	if r.PostForm.Get("_action") == actionCategory {
		s.renderForm(w, r, http.StatusOK, f, item, action)
		return
	}

	ctx, done := s.start(r, "submit")
	defer done()

	mode := f.Mode()
	err := f.Submit(ctx)
	switch {
	case err == nil:
		slog.Info("pawn item saved", "user", userEmail(r), "mode", mode.String())
		http.Redirect(w, r, "/pawn-items", http.StatusSeeOther)
	case errors.Is(err, form.ErrInvalid):
		s.renderForm(w, r, http.StatusUnprocessableEntity, f, item, action)
	case stateFrom(r).unauthorized:
		s.handleBackendError(w, r, err, session.LoginPath)
	default:
		slog.Warn("pawn item rejected", "error", err)
		s.renderForm(w, r, http.StatusBadRequest, f, item, action)
	}
}

// NewPawnItemPage handles GET /pawn-items/new.
func (s *Server) NewPawnItemPage(w http.ResponseWriter, r *http.Request) {
	f := s.newForm(r, s.backend(r))
	f.OpenCreate(s.today())
	if c, ok := model.ParseCategory(r.URL.Query().Get("category")); ok && c.Valid() {
		f.Set(form.KeyCategory, string(c))
	}
	s.renderForm(w, r, http.StatusOK, f, nil, "/pawn-items/new")
}

// NewPawnItemSubmit handles POST /pawn-items/new.
func (s *Server) NewPawnItemSubmit(w http.ResponseWriter, r *http.Request) {
	f := s.newForm(r, s.backend(r))
	f.OpenCreate(s.today())
	s.submitForm(w, r, f, nil, "/pawn-items/new")
}

// loadItem fetches the item named by the route, handling failures.
func (s *Server) loadItem(w http.ResponseWriter, r *http.Request, c *client.Client) *model.PawnItem {
	ctx, done := s.start(r, "get")
	defer done()
	item, err := c.GetPawnItem(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.handleBackendError(w, r, err, "/pawn-items")
		return nil
	}
	return item
}

// PawnItemPage handles GET /pawn-items/{id}.
func (s *Server) PawnItemPage(w http.ResponseWriter, r *http.Request) {
	c := s.backend(r)
	item := s.loadItem(w, r, c)
	if item == nil {
		return
	}
	f := s.newForm(r, c)
	f.OpenView(*item)
	s.renderForm(w, r, http.StatusOK, f, item, "")
}

// EditPawnItemPage handles GET /pawn-items/{id}/edit.
func (s *Server) EditPawnItemPage(w http.ResponseWriter, r *http.Request) {
	c := s.backend(r)
	item := s.loadItem(w, r, c)
	if item == nil {
		return
	}
	f := s.newForm(r, c)
	f.OpenEdit(*item)
	s.renderForm(w, r, http.StatusOK, f, item, "/pawn-items/"+item.ID+"/edit")
}

// EditPawnItemSubmit handles POST /pawn-items/{id}/edit.
func (s *Server) EditPawnItemSubmit(w http.ResponseWriter, r *http.Request) {
	c := s.backend(r)
	item := s.loadItem(w, r, c)
	if item == nil {
		return
	}
	f := s.newForm(r, c)
	f.OpenEdit(*item)
	s.submitForm(w, r, f, item, "/pawn-items/"+item.ID+"/edit")
}

// DeletePawnItemSubmit handles POST /pawn-items/{id}/delete.
func (s *Server) DeletePawnItemSubmit(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	id := chi.URLParam(r, "id")

	ctx, done := s.start(r, "delete")
	defer done()
	if err := s.backend(r).DeletePawnItem(ctx, id); err != nil {
		s.handleBackendError(w, r, err, "/pawn-items/"+id)
		return
	}

	s.forgetLists(st.store.ID())
	slog.Info("pawn item deleted", "user", userEmail(r), "item", id)
	st.notifier.Success("Deleted", "Pawn item deleted.", nil)
	http.Redirect(w, r, "/pawn-items", http.StatusSeeOther)
}

// RedeemPawnItemSubmit handles POST /pawn-items/{id}/redeem.
func (s *Server) RedeemPawnItemSubmit(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)
	id := chi.URLParam(r, "id")

	ctx, done := s.start(r, "redeem")
	defer done()
	item, err := s.backend(r).RedeemPawnItem(ctx, id)
	if err != nil {
		s.handleBackendError(w, r, err, "/pawn-items/"+id)
		return
	}

	s.forgetLists(st.store.ID())
	slog.Info("pawn item redeemed", "user", userEmail(r), "item", item.ID)
	st.notifier.Success("Redeemed", "Pawn item of "+item.CustomerName+" redeemed.", nil)
	http.Redirect(w, r, "/pawn-items/"+item.ID, http.StatusSeeOther)
}
