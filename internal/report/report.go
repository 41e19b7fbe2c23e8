// Package report filters, sorts and pages the report projection of the
// pawn book and exports it as a spreadsheet.
package report

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/erazemk/lombard/internal/listing"
	"github.com/erazemk/lombard/internal/model"
)

// PageSizes are the page sizes a user can pick.
var PageSizes = []int{10, 25, 50, 100}

// Column is a sortable report column.
type Column string

// Report columns.
const (
	ColumnNo             Column = "no"
	ColumnCustomerName   Column = "customerName"
	ColumnCustomerNRC    Column = "customerNRC"
	ColumnItemType       Column = "itemType"
	ColumnAmount         Column = "amount"
	ColumnPawnDate       Column = "pawnDate"
	ColumnDueDate        Column = "dueDate"
	ColumnCheckedOutDate Column = "checkedOutDate"
	ColumnCheckedOutBy   Column = "checkedOutBy"
)

// Columns returns the sortable columns in display order.
func Columns() []Column {
	return []Column{
		ColumnNo, ColumnCustomerName, ColumnCustomerNRC, ColumnItemType, ColumnAmount,
		ColumnPawnDate, ColumnDueDate, ColumnCheckedOutDate, ColumnCheckedOutBy,
	}
}

// ParseColumn reports whether s names a sortable column.
func ParseColumn(s string) (Column, bool) {
	for _, c := range Columns() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter holds the advanced search. Zero fields do not filter.
type Filter struct {
	CustomerName   string
	CustomerNRC    string
	ItemType       model.Category
	MinAmount      float64
	MaxAmount      float64
	PawnFrom       model.Date
	PawnTo         model.Date
	DueFrom        model.Date
	DueTo          model.Date
	CheckedOutFrom model.Date
	CheckedOutTo   model.Date
	CheckedOutBy   string
}

// IsZero reports whether no advanced filter is set.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Row is a report item with its derived status text.
type Row struct {
	model.ReportItem
	Status string
}

// View is the derived state shown to the user.
type View struct {
	Rows        []Row
	Page        int
	PageSize    int
	TotalPages  int
	Count       int
	PageNumbers []int
	Search      string
	Filter      Filter
	SortColumn  Column
	SortDir     Direction
}

// Engine holds the fetched report and the filter/sort/page state. An Engine
// belongs to a single request and is not safe for concurrent use.
type Engine struct {
	rows     []model.ReportItem
	search   string
	filter   Filter
	column   Column
	dir      Direction
	page     int
	pageSize int
	today    func() model.Date
	collator *collate.Collator

	filtered []model.ReportItem
}

// Option configures an Engine.
type Option func(*Engine)

// WithToday overrides the clock used for status text.
func WithToday(fn func() model.Date) Option {
	return func(e *Engine) { e.today = fn }
}

// WithLanguage sets the collation used for text columns.
func WithLanguage(tag language.Tag) Option {
	return func(e *Engine) { e.collator = collate.New(tag, collate.IgnoreCase) }
}

// New returns an empty engine on page 1 with the first page size.
func New(opts ...Option) *Engine {
	e := &Engine{
		dir:      Asc,
		page:     1,
		pageSize: PageSizes[0],
		today:    model.Today,
		collator: collate.New(language.English, collate.IgnoreCase),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.apply()
	return e
}

// Replace swaps the fetched rows.
func (e *Engine) Replace(rows []model.ReportItem) {
	e.rows = slices.Clone(rows)
	e.apply()
}

// SetSearch sets the basic search term and returns to page 1.
func (e *Engine) SetSearch(term string) {
	e.search = strings.TrimSpace(term)
	e.page = 1
	e.apply()
}

// SetFilter sets the advanced search and returns to page 1.
func (e *Engine) SetFilter(f Filter) {
	e.filter = f
	e.page = 1
	e.apply()
}

// ClearFilter removes the advanced search and returns to page 1.
func (e *Engine) ClearFilter() {
	e.SetFilter(Filter{})
}

// Sort orders by column. Sorting by the current column flips the
// direction; a new column starts ascending.
func (e *Engine) Sort(column Column) {
	if e.column == column {
		if e.dir == Asc {
			e.dir = Desc
		} else {
			e.dir = Asc
		}
	} else {
		e.column = column
		e.dir = Asc
	}
	e.apply()
}

// SetSort sets column and direction directly.
func (e *Engine) SetSort(column Column, dir Direction) {
	e.column = column
	e.dir = dir
	if dir != Desc {
		e.dir = Asc
	}
	e.apply()
}

// SetPageSize changes the page size and returns to page 1. Sizes outside
// PageSizes are ignored.
func (e *Engine) SetPageSize(size int) {
	if !slices.Contains(PageSizes, size) {
		return
	}
	e.pageSize = size
	e.page = 1
	e.apply()
}

// SetPage moves to page, clamped to the available pages.
func (e *Engine) SetPage(page int) {
	e.page = page
	e.clamp()
}

func (e *Engine) clamp() {
	e.page = listing.ClampPage(e.page, listing.TotalPages(len(e.filtered), e.pageSize))
}

// Filtered returns every row passing the search and filter, in sort order.
func (e *Engine) Filtered() []model.ReportItem {
	return slices.Clone(e.filtered)
}

// CurrentPage returns the rows on the current page.
func (e *Engine) CurrentPage() []model.ReportItem {
	page, _, _ := listing.Paginate(e.filtered, e.page, e.pageSize)
	return slices.Clone(page)
}

// Today returns the date statuses are computed against.
func (e *Engine) Today() model.Date {
	return e.today()
}

// View returns the current page with status text and page links.
func (e *Engine) View() View {
	page, current, total := listing.Paginate(e.filtered, e.page, e.pageSize)
	today := e.today()
	rows := make([]Row, len(page))
	for i, it := range page {
		rows[i] = Row{ReportItem: it, Status: it.StatusText(today)}
	}
	return View{
		Rows:        rows,
		Page:        current,
		PageSize:    e.pageSize,
		TotalPages:  total,
		Count:       len(e.filtered),
		PageNumbers: listing.PageNumbers(current, total),
		Search:      e.search,
		Filter:      e.filter,
		SortColumn:  e.column,
		SortDir:     e.dir,
	}
}

func (e *Engine) apply() {
	out := make([]model.ReportItem, 0, len(e.rows))
	term := strings.ToLower(e.search)
	for _, it := range e.rows {
		if term != "" && !matchesSearch(it, term) {
			continue
		}
		if !e.filter.matches(it) {
			continue
		}
		out = append(out, it)
	}
	if e.column != "" {
		slices.SortStableFunc(out, func(a, b model.ReportItem) int {
			c := e.compare(a, b)
			if e.dir == Desc {
				return -c
			}
			return c
		})
	}
	e.filtered = out
	e.clamp()
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func matchesSearch(it model.ReportItem, term string) bool {
	return containsFold(it.CustomerName, term) ||
		containsFold(it.CustomerNRC, term) ||
		containsFold(string(it.ItemType), term) ||
		(it.CheckedOutBy != "" && containsFold(it.CheckedOutBy, term))
}

func inRange(d, from, to model.Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

func (f Filter) matches(it model.ReportItem) bool {
	switch {
	case f.CustomerName != "" && !containsFold(it.CustomerName, f.CustomerName):
		return false
	case f.CustomerNRC != "" && !containsFold(it.CustomerNRC, f.CustomerNRC):
		return false
	case f.ItemType != "" && f.ItemType != model.CategoryAll && it.ItemType != f.ItemType:
		return false
	case f.MinAmount > 0 && it.Amount < f.MinAmount:
		return false
	case f.MaxAmount > 0 && it.Amount > f.MaxAmount:
		return false
	case !inRange(it.PawnDate, f.PawnFrom, f.PawnTo):
		return false
	case !inRange(it.DueDate, f.DueFrom, f.DueTo):
		return false
	case f.CheckedOutBy != "" && !containsFold(it.CheckedOutBy, f.CheckedOutBy):
		return false
	}
	if !f.CheckedOutFrom.IsZero() || !f.CheckedOutTo.IsZero() {
		if it.CheckedOutDate == nil || !inRange(*it.CheckedOutDate, f.CheckedOutFrom, f.CheckedOutTo) {
			return false
		}
	}
	return true
}

// compare orders a before b ascending. Missing checkout values sort first.
func (e *Engine) compare(a, b model.ReportItem) int {
	switch e.column {
	case ColumnNo:
		return cmp.Compare(a.No, b.No)
	case ColumnCustomerName:
		return e.collator.CompareString(a.CustomerName, b.CustomerName)
	case ColumnCustomerNRC:
		return strings.Compare(a.CustomerNRC, b.CustomerNRC)
	case ColumnItemType:
		return strings.Compare(string(a.ItemType), string(b.ItemType))
	case ColumnAmount:
		return cmp.Compare(a.Amount, b.Amount)
	case ColumnPawnDate:
		return a.PawnDate.Compare(b.PawnDate)
	case ColumnDueDate:
		return a.DueDate.Compare(b.DueDate)
	case ColumnCheckedOutDate:
		switch {
		case a.CheckedOutDate == nil && b.CheckedOutDate == nil:
			return 0
		case a.CheckedOutDate == nil:
			return -1
		case b.CheckedOutDate == nil:
			return 1
		}
		return a.CheckedOutDate.Compare(*b.CheckedOutDate)
	case ColumnCheckedOutBy:
		return e.collator.CompareString(a.CheckedOutBy, b.CheckedOutBy)
	}
	return 0
}
