// Package schema holds the field layout of each pawn item category.
//
// The registry is built once at startup and never mutated. The form engine
// uses it to attach inputs for the selected category; the console uses it to
// render category-specific table columns.
package schema

import (
	"fmt"

	"github.com/erazemk/lombard/internal/model"
)

// ErrUnknownCategory is returned by Lookup for categories the registry does
// not know. The sentinel category "all" is known and has no fields.
var ErrUnknownCategory = model.ErrUnknownCategory

// InputType is the kind of input a field is edited with.
type InputType string

const (
	InputText   InputType = "text"
	InputNumber InputType = "number"
	InputSelect InputType = "select"
)

// FieldDescriptor describes one category-specific field.
type FieldDescriptor struct {
	Key      string
	Label    string
	Input    InputType
	Required bool
	Options  []string // non-empty iff Input is InputSelect
}

// HasOption reports whether v is one of the descriptor's options.
func (f FieldDescriptor) HasOption(v string) bool {
	for _, o := range f.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Registry maps categories to their ordered field descriptors.
type Registry struct {
	fields map[model.Category][]FieldDescriptor
}

// New builds a registry, checking that keys are unique within a category
// and that options are present exactly on select fields.
func New(fields map[model.Category][]FieldDescriptor) (*Registry, error) {
	r := &Registry{fields: make(map[model.Category][]FieldDescriptor, len(fields))}
	for cat, descs := range fields {
		seen := make(map[string]bool, len(descs))
		for _, d := range descs {
			if seen[d.Key] {
				return nil, fmt.Errorf("category %s: duplicate field key %q", cat, d.Key)
			}
			seen[d.Key] = true
			if (d.Input == InputSelect) != (len(d.Options) > 0) {
				return nil, fmt.Errorf("category %s: field %q: options must be set only on select fields", cat, d.Key)
			}
		}
		r.fields[cat] = cloneFields(descs)
	}
	return r, nil
}

// FieldsFor returns the descriptors of category in display order. The
// sentinel "all" and unknown categories yield an empty slice.
func (r *Registry) FieldsFor(category model.Category) []FieldDescriptor {
	return cloneFields(r.fields[category])
}

// Lookup is FieldsFor with a diagnostic for unknown categories.
func (r *Registry) Lookup(category model.Category) ([]FieldDescriptor, error) {
	if category == model.CategoryAll {
		return []FieldDescriptor{}, nil
	}
	descs, ok := r.fields[category]
	if !ok {
		return []FieldDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return cloneFields(descs), nil
}

// Descriptor returns the descriptor for key in category.
func (r *Registry) Descriptor(category model.Category, key string) (FieldDescriptor, bool) {
	for _, d := range r.fields[category] {
		if d.Key == key {
			return d, true
		}
	}
	return FieldDescriptor{}, false
}

// Keys returns the field keys of category in display order.
func (r *Registry) Keys(category model.Category) []string {
	descs := r.fields[category]
	keys := make([]string, len(descs))
	for i, d := range descs {
		keys[i] = d.Key
	}
	return keys
}

func cloneFields(in []FieldDescriptor) []FieldDescriptor {
	out := make([]FieldDescriptor, len(in))
	for i, d := range in {
		d.Options = append([]string(nil), d.Options...)
		out[i] = d
	}
	return out
}
