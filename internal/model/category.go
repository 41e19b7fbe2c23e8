package model

import "strings"

// Category is the kind of item taken in pawn.
type Category string

// Item categories.
const (
	CategoryPhone    Category = "Phone"
	CategoryMotoBike Category = "MotoBike"
	CategoryBicycle  Category = "Bicycle"
	CategoryWatches  Category = "Watches"
	CategoryOthers   Category = "Others"
)

// CategoryAll is the pseudo-category that disables category filtering.
const CategoryAll Category = "all"

// Categories returns the closed set of real categories in display order.
func Categories() []Category {
	return []Category{CategoryPhone, CategoryMotoBike, CategoryBicycle, CategoryWatches, CategoryOthers}
}

// Valid reports whether c is one of the real categories (not the sentinel).
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the display label for the category.
func (c Category) Label() string {
	if c == CategoryAll {
		return "All Items"
	}
	return string(c)
}

// Icon returns the glyph shown next to the category in the console.
func (c Category) Icon() string {
	switch c {
	case CategoryPhone:
		return "📱"
	case CategoryMotoBike:
		return "🏍️"
	case CategoryBicycle:
		return "🚲"
	case CategoryWatches:
		return "⌚"
	case CategoryOthers:
		return "📋"
	default:
		return "📦"
	}
}

// ParseCategory maps user input onto a category. Matching is exact first,
// then case-insensitive. The empty string and "all" map to CategoryAll.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(CategoryAll)) {
		return CategoryAll, true
	}
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	for _, c := range Categories() {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return Category(s), false
}
