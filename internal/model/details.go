package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownCategory is returned when a category has no details variant.
var ErrUnknownCategory = errors.New("unknown category")

// Details holds the category-specific attributes of a pawn item. Exactly one
// concrete type exists per category; the set is closed.
type Details interface {
	// Category returns the category this variant belongs to.
	Category() Category
	// Fields returns the set attributes keyed by their field key. Number
	// fields carry numeric values; unset fields are omitted.
	Fields() map[string]any
	isDetails()
}

// PhoneDetails describes a pawned phone.
type PhoneDetails struct {
	Brand     string
	Model     string
	IMEI      string
	Storage   string
	Condition string
}

// MotoBikeDetails describes a pawned motorbike.
type MotoBikeDetails struct {
	Make        string
	Year        *int
	Engine      string
	PlateNumber string
	Mileage     *float64
}

// BicycleDetails describes a pawned bicycle.
type BicycleDetails struct {
	Type         string
	FrameSize    string
	Gears        *int
	WheelSize    string
	SerialNumber string
	Condition    string
}

// WatchDetails describes a pawned watch.
type WatchDetails struct {
	Brand        string
	Model        string
	Movement     string
	Material     string
	SerialNumber string
}

// OtherDetails describes any other pawned item.
type OtherDetails struct {
	ItemName  string
	Weight    *float64
	Material  string
	Color     string
	Condition string
}

func (PhoneDetails) Category() Category    { return CategoryPhone }
func (MotoBikeDetails) Category() Category { return CategoryMotoBike }
func (BicycleDetails) Category() Category  { return CategoryBicycle }
func (WatchDetails) Category() Category    { return CategoryWatches }
func (OtherDetails) Category() Category    { return CategoryOthers }

func (PhoneDetails) isDetails()    {}
func (MotoBikeDetails) isDetails() {}
func (BicycleDetails) isDetails()  {}
func (WatchDetails) isDetails()    {}
func (OtherDetails) isDetails()    {}

// detailKeys lists the field keys of each variant in schema order.
var detailKeys = map[Category][]string{
	CategoryPhone:    {"brand", "model", "imei", "storage", "condition"},
	CategoryMotoBike: {"make", "year", "engine", "plateNumber", "mileage"},
	CategoryBicycle:  {"type", "frameSize", "gears", "wheelSize", "serialNumber", "condition"},
	CategoryWatches:  {"watchBrand", "watchModel", "movement", "material", "serialNumber"},
	CategoryOthers:   {"itemName", "weight", "material2", "color", "condition"},
}

// DetailKeys returns the detail field keys of a category, or nil for
// unknown categories.
func DetailKeys(c Category) []string {
	keys := detailKeys[c]
	if keys == nil {
		return nil
	}
	return append([]string(nil), keys...)
}

func (d PhoneDetails) Fields() map[string]any {
	m := map[string]any{}
	putString(m, "brand", d.Brand)
	putString(m, "model", d.Model)
	putString(m, "imei", d.IMEI)
	putString(m, "storage", d.Storage)
	putString(m, "condition", d.Condition)
	return m
}

func (d MotoBikeDetails) Fields() map[string]any {
	m := map[string]any{}
	putString(m, "make", d.Make)
	if d.Year != nil {
		m["year"] = *d.Year
	}
	putString(m, "engine", d.Engine)
	putString(m, "plateNumber", d.PlateNumber)
	if d.Mileage != nil {
		m["mileage"] = *d.Mileage
	}
	return m
}

func (d BicycleDetails) Fields() map[string]any {
	m := map[string]any{}
	putString(m, "type", d.Type)
	putString(m, "frameSize", d.FrameSize)
	if d.Gears != nil {
		m["gears"] = *d.Gears
	}
	putString(m, "wheelSize", d.WheelSize)
	putString(m, "serialNumber", d.SerialNumber)
	putString(m, "condition", d.Condition)
	return m
}

func (d WatchDetails) Fields() map[string]any {
	m := map[string]any{}
	putString(m, "watchBrand", d.Brand)
	putString(m, "watchModel", d.Model)
	putString(m, "movement", d.Movement)
	putString(m, "material", d.Material)
	putString(m, "serialNumber", d.SerialNumber)
	return m
}

func (d OtherDetails) Fields() map[string]any {
	m := map[string]any{}
	putString(m, "itemName", d.ItemName)
	if d.Weight != nil {
		m["weight"] = *d.Weight
	}
	putString(m, "material2", d.Material)
	putString(m, "color", d.Color)
	putString(m, "condition", d.Condition)
	return m
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// DetailValues renders the set attributes of d as strings, the shape form
// inputs use. A nil d yields an empty map.
func DetailValues(d Details) map[string]string {
	out := map[string]string{}
	if d == nil {
		return out
	}
	for k, v := range d.Fields() {
		out[k] = formatValue(v)
	}
	return out
}

// NewDetails builds the variant for category c from string values keyed by
// field key. Keys that do not belong to c are ignored. Number fields must
// parse; blank values leave the attribute unset.
func NewDetails(c Category, values map[string]string) (Details, error) {
	get := func(key string) string { return strings.TrimSpace(values[key]) }

	switch c {
	case CategoryPhone:
		return PhoneDetails{
			Brand:     get("brand"),
			Model:     get("model"),
			IMEI:      get("imei"),
			Storage:   get("storage"),
			Condition: get("condition"),
		}, nil
	case CategoryMotoBike:
		year, err := parseInt("year", get("year"))
		if err != nil {
			return nil, err
		}
		mileage, err := parseFloat("mileage", get("mileage"))
		if err != nil {
			return nil, err
		}
		return MotoBikeDetails{
			Make:        get("make"),
			Year:        year,
			Engine:      get("engine"),
			PlateNumber: get("plateNumber"),
			Mileage:     mileage,
		}, nil
	case CategoryBicycle:
		gears, err := parseInt("gears", get("gears"))
		if err != nil {
			return nil, err
		}
		return BicycleDetails{
			Type:         get("type"),
			FrameSize:    get("frameSize"),
			Gears:        gears,
			WheelSize:    get("wheelSize"),
			SerialNumber: get("serialNumber"),
			Condition:    get("condition"),
		}, nil
	case CategoryWatches:
		return WatchDetails{
			Brand:        get("watchBrand"),
			Model:        get("watchModel"),
			Movement:     get("movement"),
			Material:     get("material"),
			SerialNumber: get("serialNumber"),
		}, nil
	case CategoryOthers:
		weight, err := parseFloat("weight", get("weight"))
		if err != nil {
			return nil, err
		}
		return OtherDetails{
			ItemName:  get("itemName"),
			Weight:    weight,
			Material:  get("material2"),
			Color:     get("color"),
			Condition: get("condition"),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
}

// DetailsFromMap builds the variant for c from decoded JSON values.
func DetailsFromMap(c Category, raw map[string]any) (Details, error) {
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[k] = formatValue(v)
	}
	return NewDetails(c, values)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func parseInt(key, s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Numbers decoded from JSON arrive as "2019" or "2019.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return nil, fmt.Errorf("%s must be a whole number", key)
		}
		n = int(f)
	}
	return &n, nil
}

func parseFloat(key, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &f, nil
}
