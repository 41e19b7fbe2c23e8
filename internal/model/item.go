package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a pawn item.
type Status string

// Pawn item statuses. Inactive is the soft-deleted terminal state.
const (
	StatusActive   Status = "Active"
	StatusExpired  Status = "Expired"
	StatusRedeemed Status = "Redeemed"
	StatusInactive Status = "Inactive"
)

// ParseStatus maps a status case-insensitively onto a known status.
func ParseStatus(s string) (Status, bool) {
	for _, st := range []Status{StatusActive, StatusExpired, StatusRedeemed, StatusInactive} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return Status(s), false
}

// DueDateOffset is the default loan period: the due date of a new pawn is
// this many days after the pawn date.
const DueDateOffset = 30

// PawnItem is an item held in pawn. The envelope fields are common to every
// category; Details carries the category-specific attributes.
type PawnItem struct {
	ID              string
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	CustomerNRC     string
	Category        Category
	Amount          float64
	PawnDate        Date
	DueDate         Date
	Status          Status
	Description     string
	Details         Details
	CheckedOutAt    *time.Time
	CheckedOutBy    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOverdue reports whether an active item is past its due date.
func (p PawnItem) IsOverdue(today Date) bool {
	return p.Status == StatusActive && !p.DueDate.IsZero() && p.DueDate.Before(today)
}

// envelopeKeys are the JSON keys owned by the envelope. Detail keys never
// collide with them.
var envelopeKeys = map[string]bool{
	"id": true, "customerName": true, "customerPhone": true, "customerAddress": true,
	"customerNrc": true, "category": true, "amount": true, "pawnDate": true,
	"dueDate": true, "status": true, "description": true, "details": true,
	"checkedOutAt": true, "checkedOutBy": true, "createdAt": true, "updatedAt": true,
}

type pawnItemEnvelope struct {
	ID              string     `json:"id"`
	CustomerName    string     `json:"customerName"`
	CustomerPhone   string     `json:"customerPhone"`
	CustomerAddress string     `json:"customerAddress"`
	CustomerNRC     string     `json:"customerNrc"`
	Category        Category   `json:"category"`
	Amount          float64    `json:"amount"`
	PawnDate        Date       `json:"pawnDate"`
	DueDate         Date       `json:"dueDate"`
	Status          Status     `json:"status"`
	Description     string     `json:"description"`
	CheckedOutAt    *time.Time `json:"checkedOutAt,omitempty"`
	CheckedOutBy    string     `json:"checkedOutBy,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// MarshalJSON encodes the item flattened: envelope fields with the detail
// fields spread next to them.
func (p PawnItem) MarshalJSON() ([]byte, error) {
	env, err := json.Marshal(pawnItemEnvelope{
		ID: p.ID, CustomerName: p.CustomerName, CustomerPhone: p.CustomerPhone,
		CustomerAddress: p.CustomerAddress, CustomerNRC: p.CustomerNRC, Category: p.Category,
		Amount: p.Amount, PawnDate: p.PawnDate, DueDate: p.DueDate, Status: p.Status,
		Description: p.Description, CheckedOutAt: p.CheckedOutAt, CheckedOutBy: p.CheckedOutBy,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	})
	if err != nil {
		return nil, err
	}
	if p.Details == nil {
		return env, nil
	}

	var flat map[string]any
	if err := json.Unmarshal(env, &flat); err != nil {
		return nil, err
	}
	for k, v := range p.Details.Fields() {
		flat[k] = v
	}
	return json.Marshal(flat)
}

// UnmarshalJSON accepts both the flattened form and a nested "details" object.
func (p *PawnItem) UnmarshalJSON(data []byte) error {
	var env pawnItemEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decoding pawn item: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding pawn item: %w", err)
	}

	*p = PawnItem{
		ID: env.ID, CustomerName: env.CustomerName, CustomerPhone: env.CustomerPhone,
		CustomerAddress: env.CustomerAddress, CustomerNRC: env.CustomerNRC, Category: env.Category,
		Amount: env.Amount, PawnDate: env.PawnDate, DueDate: env.DueDate, Status: env.Status,
		Description: env.Description, CheckedOutAt: env.CheckedOutAt, CheckedOutBy: env.CheckedOutBy,
		CreatedAt: env.CreatedAt, UpdatedAt: env.UpdatedAt,
	}

	if !env.Category.Valid() {
		return nil
	}
	values := map[string]any{}
	if nested, ok := raw["details"].(map[string]any); ok {
		values = nested
	}
	for _, key := range DetailKeys(env.Category) {
		if v, ok := raw[key]; ok && !envelopeKeys[key] {
			values[key] = v
		}
	}
	details, err := DetailsFromMap(env.Category, values)
	if err != nil {
		return fmt.Errorf("decoding %s details: %w", env.Category, err)
	}
	p.Details = details
	return nil
}

// PawnRequest is the create/update payload: the envelope plus a details map
// holding only the attributes of the request's category.
type PawnRequest struct {
	CustomerName    string
	CustomerPhone   string
	CustomerNRC     string
	CustomerAddress string
	Category        Category
	Amount          float64
	PawnDate        Date
	DueDate         Date
	Description     string
	Details         Details
}

type pawnRequestWire struct {
	CustomerName    string         `json:"customerName"`
	CustomerPhone   string         `json:"customerPhone"`
	CustomerNRC     string         `json:"customerNrc"`
	CustomerAddress string         `json:"customerAddress"`
	Category        Category       `json:"category"`
	Amount          float64        `json:"amount"`
	PawnDate        Date           `json:"pawnDate"`
	DueDate         Date           `json:"dueDate"`
	Description     string         `json:"description"`
	Details         map[string]any `json:"details"`
}

// MarshalJSON encodes the request in wire form.
func (r PawnRequest) MarshalJSON() ([]byte, error) {
	details := map[string]any{}
	if r.Details != nil {
		details = r.Details.Fields()
	}
	return json.Marshal(pawnRequestWire{
		CustomerName: r.CustomerName, CustomerPhone: r.CustomerPhone, CustomerNRC: r.CustomerNRC,
		CustomerAddress: r.CustomerAddress, Category: r.Category, Amount: r.Amount,
		PawnDate: r.PawnDate, DueDate: r.DueDate, Description: r.Description, Details: details,
	})
}

// UnmarshalJSON decodes the wire form. Detail keys outside the category are dropped.
func (r *PawnRequest) UnmarshalJSON(data []byte) error {
	var w pawnRequestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = PawnRequest{
		CustomerName: w.CustomerName, CustomerPhone: w.CustomerPhone, CustomerNRC: w.CustomerNRC,
		CustomerAddress: w.CustomerAddress, Category: w.Category, Amount: w.Amount,
		PawnDate: w.PawnDate, DueDate: w.DueDate, Description: w.Description,
	}
	if !w.Category.Valid() {
		return nil
	}
	details, err := DetailsFromMap(w.Category, w.Details)
	if err != nil {
		return err
	}
	r.Details = details
	return nil
}

// Validate checks the envelope rules the backend enforces.
func (r PawnRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.CustomerName) == "":
		return fmt.Errorf("customer name required")
	case strings.TrimSpace(r.CustomerAddress) == "":
		return fmt.Errorf("customer address required")
	case !ValidNRC(r.CustomerNRC):
		return fmt.Errorf("invalid NRC")
	case !ValidPhone(r.CustomerPhone):
		return fmt.Errorf("invalid phone number")
	case !r.Category.Valid():
		return fmt.Errorf("invalid category")
	case r.Amount <= 0:
		return fmt.Errorf("amount must be positive")
	case r.PawnDate.IsZero() || r.DueDate.IsZero():
		return fmt.Errorf("pawn date and due date required")
	case r.DueDate.Before(r.PawnDate):
		return fmt.Errorf("due date must not be before pawn date")
	case r.Details != nil && r.Details.Category() != r.Category:
		return fmt.Errorf("details do not match category")
	}
	return nil
}

// Apply copies the request onto item, replacing envelope and details.
func (r PawnRequest) Apply(item *PawnItem) {
	item.CustomerName = strings.TrimSpace(r.CustomerName)
	item.CustomerPhone = strings.Join(strings.Fields(r.CustomerPhone), "")
	item.CustomerNRC = strings.ToUpper(strings.TrimSpace(r.CustomerNRC))
	item.CustomerAddress = strings.TrimSpace(r.CustomerAddress)
	item.Category = r.Category
	item.Amount = r.Amount
	item.PawnDate = r.PawnDate
	item.DueDate = r.DueDate
	item.Description = strings.TrimSpace(r.Description)
	item.Details = r.Details
}
