// Package listing derives the visible page of pawn items from the full
// fetched set: category filter, free-text search, sort and pagination.
package listing

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/erazemk/lombard/internal/model"
)

// SortKey selects the list order.
type SortKey string

const (
	SortPawnDate     SortKey = "pawnDate"
	SortAmount       SortKey = "amount"
	SortCustomerName SortKey = "customerName"
	SortStatus       SortKey = "status"
	// SortCheckedOut lists only redeemed items, latest checkout first.
	SortCheckedOut SortKey = "CheckedOutItems"
)

// SortKeys returns the selectable sort keys in display order.
func SortKeys() []SortKey {
	return []SortKey{SortPawnDate, SortAmount, SortCustomerName, SortStatus, SortCheckedOut}
}

// ParseSortKey maps s onto a sort key, falling back to SortPawnDate.
func ParseSortKey(s string) SortKey {
	for _, k := range SortKeys() {
		if string(k) == s {
			return k
		}
	}
	return SortPawnDate
}

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 10

// Source fetches pawn items from the backend.
type Source interface {
	ListPawnItems(ctx context.Context, category model.Category, sortBy string) ([]model.PawnItem, error)
}

// Aggregates are computed over the filtered set before pagination.
type Aggregates struct {
	TotalValue float64
	Active     int
	// ExpiredClass counts Expired, Overdue and Inactive statuses together,
	// the legacy dashboard bucket.
	ExpiredClass int
	Expired      int
	// Inactive counts soft-deleted items.
	Inactive int
	// Overdue counts active items whose due date has passed.
	Overdue int
}

// View is the derived state shown to the user.
type View struct {
	Items      []model.PawnItem
	Page       int
	PageSize   int
	TotalPages int
	Count      int
	Category   model.Category
	Search     string
	Sort       SortKey
	Aggregates Aggregates
}

// Engine holds the fetched set and the filter/sort/page state. An Engine
// belongs to a single request and is not safe for concurrent use.
type Engine struct {
	items    []model.PawnItem
	category model.Category
	search   string
	sort     SortKey
	page     int
	pageSize int
	today    func() model.Date
	collator *collate.Collator

	filtered []model.PawnItem
}

// Option configures an Engine.
type Option func(*Engine)

// WithToday overrides the clock used for the overdue aggregate.
func WithToday(fn func() model.Date) Option {
	return func(e *Engine) { e.today = fn }
}

// WithLanguage sets the collation used for the customer name sort.
func WithLanguage(tag language.Tag) Option {
	return func(e *Engine) { e.collator = collate.New(tag, collate.IgnoreCase) }
}

// New returns an empty engine showing every category on page 1.
func New(pageSize int, opts ...Option) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	e := &Engine{
		category: model.CategoryAll,
		sort:     SortPawnDate,
		page:     1,
		pageSize: pageSize,
		today:    model.Today,
		collator: collate.New(language.English, collate.IgnoreCase),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.apply()
	return e
}

// Replace swaps the fetched set.
func (e *Engine) Replace(items []model.PawnItem) {
	e.items = slices.Clone(items)
	e.apply()
}

// Fetch loads the set from src. On error the current set is kept.
func (e *Engine) Fetch(ctx context.Context, src Source) error {
	items, err := src.ListPawnItems(ctx, e.category, string(e.sort))
	if err != nil {
		return fmt.Errorf("fetching pawn items: %w", err)
	}
	e.Replace(items)
	return nil
}

// Items returns the full fetched set.
func (e *Engine) Items() []model.PawnItem {
	return slices.Clone(e.items)
}

// SetCategory filters by category; CategoryAll disables the filter.
func (e *Engine) SetCategory(c model.Category) {
	e.category = c
	e.apply()
}

// SetSearch sets the free-text search term.
func (e *Engine) SetSearch(term string) {
	e.search = strings.TrimSpace(term)
	e.apply()
}

// SetSort selects the order. The checked-out order always shows every
// category.
func (e *Engine) SetSort(key SortKey) {
	e.sort = key
	if key == SortCheckedOut {
		e.category = model.CategoryAll
	}
	e.apply()
}

// SetPage moves to page, clamped into range.
func (e *Engine) SetPage(page int) {
	e.page = page
	e.clamp()
}

// Next moves one page forward if there is one.
func (e *Engine) Next() { e.SetPage(e.page + 1) }

// Prev moves one page back if there is one.
func (e *Engine) Prev() { e.SetPage(e.page - 1) }

func (e *Engine) clamp() {
	e.page = ClampPage(e.page, TotalPages(len(e.filtered), e.pageSize))
}

// apply reruns the pipeline and clamps the current page.
func (e *Engine) apply() {
	out := make([]model.PawnItem, 0, len(e.items))
	term := strings.ToLower(e.search)
	for _, it := range e.items {
		if e.sort == SortCheckedOut && it.Status != model.StatusRedeemed {
			continue
		}
		if e.category != model.CategoryAll && it.Category != e.category {
			continue
		}
		if term != "" && !matches(it, term) {
			continue
		}
		out = append(out, it)
	}
	slices.SortStableFunc(out, e.compare)
	e.filtered = out
	e.clamp()
}

func matches(it model.PawnItem, term string) bool {
	return strings.Contains(strings.ToLower(it.CustomerName), term) ||
		strings.Contains(strings.ToLower(it.ID), term) ||
		strings.Contains(strings.ToLower(string(it.Category)), term) ||
		(it.Description != "" && strings.Contains(strings.ToLower(it.Description), term))
}

func (e *Engine) compare(a, b model.PawnItem) int {
	switch e.sort {
	case SortAmount:
		return cmp.Compare(b.Amount, a.Amount)
	case SortCustomerName:
		return e.collator.CompareString(a.CustomerName, b.CustomerName)
	case SortStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case SortCheckedOut:
		switch {
		case a.CheckedOutAt == nil && b.CheckedOutAt == nil:
			return 0
		case a.CheckedOutAt == nil:
			return 1
		case b.CheckedOutAt == nil:
			return -1
		}
		return b.CheckedOutAt.Compare(*a.CheckedOutAt)
	default:
		return b.PawnDate.Compare(a.PawnDate)
	}
}

// View returns the current page and aggregates.
func (e *Engine) View() View {
	page, current, total := Paginate(e.filtered, e.page, e.pageSize)
	return View{
		Items:      slices.Clone(page),
		Page:       current,
		PageSize:   e.pageSize,
		TotalPages: total,
		Count:      len(e.filtered),
		Category:   e.category,
		Search:     e.search,
		Sort:       e.sort,
		Aggregates: e.aggregates(),
	}
}

func (e *Engine) aggregates() Aggregates {
	var a Aggregates
	today := e.today()
	for _, it := range e.filtered {
		a.TotalValue += it.Amount
		status := string(it.Status)
		switch {
		case strings.EqualFold(status, string(model.StatusActive)):
			a.Active++
		case strings.EqualFold(status, string(model.StatusExpired)):
			a.Expired++
			a.ExpiredClass++
		case strings.EqualFold(status, string(model.StatusInactive)):
			a.Inactive++
			a.ExpiredClass++
		case strings.EqualFold(status, "Overdue"):
			a.ExpiredClass++
		}
		if it.IsOverdue(today) {
			a.Overdue++
		}
	}
	return a
}
