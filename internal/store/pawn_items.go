package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/lombard/internal/model"
)

var (
	// ErrNotFound is returned when a mutation targets a missing row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateIMEI is returned when a phone's IMEI already belongs to an
	// item the shop still holds.
	ErrDuplicateIMEI = errors.New("duplicate IMEI")
	// ErrNotRedeemable is returned when redeeming an item that is not held.
	ErrNotRedeemable = errors.New("item cannot be redeemed")
)

const pawnItemColumns = `id, customer_name, customer_phone, customer_address, customer_nrc,
	category, amount, pawn_date, due_date, status, description, details,
	checked_out_at, checked_out_by, created_at, updated_at`

// PawnFilter narrows ListPawnItems.
type PawnFilter struct {
	Category model.Category // CategoryAll or "" for every category
	SortBy   string
	// IncludeInactive also returns soft-deleted items.
	IncludeInactive bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPawnItem(s rowScanner) (*model.PawnItem, error) {
	var (
		item              model.PawnItem
		pawnDate, dueDate string
		details           string
		checkedOutBy      sql.NullString
		category, status  string
	)
	err := s.Scan(&item.ID, &item.CustomerName, &item.CustomerPhone, &item.CustomerAddress, &item.CustomerNRC,
		&category, &item.Amount, &pawnDate, &dueDate, &status, &item.Description, &details,
		&item.CheckedOutAt, &checkedOutBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Category = model.Category(category)
	item.Status = model.Status(status)
	item.CheckedOutBy = checkedOutBy.String

	if item.PawnDate, err = model.ParseDate(pawnDate); err != nil {
		return nil, err
	}
	if item.DueDate, err = model.ParseDate(dueDate); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(details), &raw); err != nil {
		return nil, fmt.Errorf("decoding details of %s: %w", item.ID, err)
	}
	if item.Details, err = model.DetailsFromMap(item.Category, raw); err != nil {
		return nil, fmt.Errorf("decoding details of %s: %w", item.ID, err)
	}
	return &item, nil
}

func encodeDetails(d model.Details) (string, sql.NullString, error) {
	if d == nil {
		return "{}", sql.NullString{}, nil
	}
	raw, err := json.Marshal(d.Fields())
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encoding details: %w", err)
	}
	var imei sql.NullString
	if phone, ok := d.(model.PhoneDetails); ok && phone.IMEI != "" {
		imei = sql.NullString{String: phone.IMEI, Valid: true}
	}
	return string(raw), imei, nil
}

func checkIMEI(ctx context.Context, tx *sql.Tx, imei sql.NullString, exceptID string) error {
	if !imei.Valid {
		return nil
	}
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pawn_items
		 WHERE imei = ? AND id != ? AND status IN ('Active', 'Expired')`,
		imei.String, exceptID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking imei: %w", err)
	}
	if count > 0 {
		return ErrDuplicateIMEI
	}
	return nil
}

func isUniqueIMEIViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: pawn_items.imei")
}

// CreatePawnItem stores a new active item built from req. A createdBy of 0
// records no creator.
func CreatePawnItem(ctx context.Context, db *sql.DB, req model.PawnRequest, createdBy int64) (*model.PawnItem, error) {
	var item model.PawnItem
	req.Apply(&item)
	item.ID = uuid.NewString()

	details, imei, err := encodeDetails(item.Details)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkIMEI(ctx, tx, imei, item.ID); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pawn_items (id, customer_name, customer_phone, customer_address, customer_nrc,
		     category, amount, pawn_date, due_date, status, description, details, imei, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.CustomerName, item.CustomerPhone, item.CustomerAddress, item.CustomerNRC,
		string(item.Category), item.Amount, item.PawnDate.String(), item.DueDate.String(),
		string(model.StatusActive), item.Description, details, imei,
		sql.NullInt64{Int64: createdBy, Valid: createdBy > 0},
	)
	if isUniqueIMEIViolation(err) {
		return nil, ErrDuplicateIMEI
	}
	if err != nil {
		return nil, fmt.Errorf("creating pawn item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pawn item: %w", err)
	}

	return GetPawnItem(ctx, db, item.ID)
}

// GetPawnItem returns an item by ID, including soft-deleted ones.
func GetPawnItem(ctx context.Context, db *sql.DB, id string) (*model.PawnItem, error) {
	item, err := scanPawnItem(db.QueryRowContext(ctx,
		`SELECT `+pawnItemColumns+` FROM pawn_items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting pawn item: %w", err)
	}
	return item, nil
}

var pawnOrder = map[string]string{
	"amount":          "amount DESC",
	"customerName":    "customer_name COLLATE NOCASE ASC",
	"status":          "status ASC",
	"pawnDate":        "pawn_date DESC",
	"CheckedOutItems": "checked_out_at DESC",
}

// ListPawnItems returns items matching f. Soft-deleted items are left out
// unless f.IncludeInactive is set; the CheckedOutItems order returns only
// redeemed items of every category.
func ListPawnItems(ctx context.Context, db *sql.DB, f PawnFilter) ([]model.PawnItem, error) {
	var (
		where []string
		args  []any
	)
	if f.SortBy == "CheckedOutItems" {
		where = append(where, "status = 'Redeemed'")
	} else {
		if f.Category != "" && f.Category != model.CategoryAll {
			where = append(where, "category = ?")
			args = append(args, string(f.Category))
		}
		if !f.IncludeInactive {
			where = append(where, "status != 'Inactive'")
		}
	}

	query := `SELECT ` + pawnItemColumns + ` FROM pawn_items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	order, ok := pawnOrder[f.SortBy]
	if !ok {
		order = pawnOrder["pawnDate"]
	}
	query += ` ORDER BY ` + order + `, created_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pawn items: %w", err)
	}
	defer rows.Close()

	items := []model.PawnItem{}
	for rows.Next() {
		item, err := scanPawnItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pawn item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdatePawnItem replaces the envelope and details of a non-deleted item.
func UpdatePawnItem(ctx context.Context, db *sql.DB, id string, req model.PawnRequest) (*model.PawnItem, error) {
	var item model.PawnItem
	req.Apply(&item)

	details, imei, err := encodeDetails(item.Details)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkIMEI(ctx, tx, imei, id); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE pawn_items SET customer_name = ?, customer_phone = ?, customer_address = ?,
		     customer_nrc = ?, category = ?, amount = ?, pawn_date = ?, due_date = ?,
		     description = ?, details = ?, imei = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'Inactive'`,
		item.CustomerName, item.CustomerPhone, item.CustomerAddress, item.CustomerNRC,
		string(item.Category), item.Amount, item.PawnDate.String(), item.DueDate.String(),
		item.Description, details, imei, id,
	)
	if isUniqueIMEIViolation(err) {
		return nil, ErrDuplicateIMEI
	}
	if err != nil {
		return nil, fmt.Errorf("updating pawn item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pawn item: %w", err)
	}

	return GetPawnItem(ctx, db, id)
}

// DeletePawnItem soft-deletes an item by moving it to Inactive.
func DeletePawnItem(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE pawn_items SET status = 'Inactive', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'Inactive'`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting pawn item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RedeemPawnItem checks a held item out to its owner.
func RedeemPawnItem(ctx context.Context, db *sql.DB, id, by string, at time.Time) (*model.PawnItem, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE pawn_items SET status = 'Redeemed', checked_out_at = ?, checked_out_by = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status IN ('Active', 'Expired')`,
		at.UTC(), by, id,
	)
	if err != nil {
		return nil, fmt.Errorf("redeeming pawn item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		existing, err := GetPawnItem(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		return nil, ErrNotRedeemable
	}
	return GetPawnItem(ctx, db, id)
}

// ExpireOverdue moves active items whose due date is before today to
// Expired and returns how many changed.
func ExpireOverdue(ctx context.Context, db *sql.DB, today model.Date) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE pawn_items SET status = 'Expired', updated_at = CURRENT_TIMESTAMP
		 WHERE status = 'Active' AND due_date < ?`, today.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("expiring overdue items: %w", err)
	}
	return result.RowsAffected()
}

// ListReportItems returns the report projection of every item that was not
// soft-deleted, numbered in pawn date order.
func ListReportItems(ctx context.Context, db *sql.DB) ([]model.ReportItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, customer_name, customer_nrc, category, amount, pawn_date, due_date,
		     checked_out_at, checked_out_by
		 FROM pawn_items WHERE status != 'Inactive'
		 ORDER BY pawn_date ASC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing report items: %w", err)
	}
	defer rows.Close()

	items := []model.ReportItem{}
	for rows.Next() {
		var (
			r                 model.ReportItem
			category          string
			pawnDate, dueDate string
			checkedOutAt      *time.Time
			checkedOutBy      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.CustomerName, &r.CustomerNRC, &category, &r.Amount,
			&pawnDate, &dueDate, &checkedOutAt, &checkedOutBy); err != nil {
			return nil, fmt.Errorf("scanning report item: %w", err)
		}
		r.No = len(items) + 1
		r.ItemType = model.Category(category)
		r.CheckedOutBy = checkedOutBy.String
		if r.PawnDate, err = model.ParseDate(pawnDate); err != nil {
			return nil, err
		}
		if r.DueDate, err = model.ParseDate(dueDate); err != nil {
			return nil, err
		}
		if checkedOutAt != nil {
			d := model.DateOf(*checkedOutAt)
			r.CheckedOutDate = &d
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// PawnStats summarises every stored item.
type PawnStats struct {
	Total       int                    `json:"total"`
	Active      int                    `json:"active"`
	Expired     int                    `json:"expired"`
	Redeemed    int                    `json:"redeemed"`
	Inactive    int                    `json:"inactive"`
	HeldValue   float64                `json:"heldValue"`
	ByCategory  map[model.Category]int `json:"byCategory"`
	DueThisWeek int                    `json:"dueThisWeek"`
}

// GetPawnStats computes the dashboard summary relative to today.
func GetPawnStats(ctx context.Context, db *sql.DB, today model.Date) (*PawnStats, error) {
	stats := &PawnStats{ByCategory: map[model.Category]int{}}

	rows, err := db.QueryContext(ctx,
		`SELECT status, category, COUNT(*), COALESCE(SUM(amount), 0)
		 FROM pawn_items GROUP BY status, category`,
	)
	if err != nil {
		return nil, fmt.Errorf("computing pawn stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status, category string
			count            int
			sum              float64
		)
		if err := rows.Scan(&status, &category, &count, &sum); err != nil {
			return nil, fmt.Errorf("scanning pawn stats: %w", err)
		}
		stats.Total += count
		switch model.Status(status) {
		case model.StatusActive:
			stats.Active += count
			stats.HeldValue += sum
		case model.StatusExpired:
			stats.Expired += count
			stats.HeldValue += sum
		case model.StatusRedeemed:
			stats.Redeemed += count
		case model.StatusInactive:
			stats.Inactive += count
		}
		if model.Status(status) != model.StatusInactive {
			stats.ByCategory[model.Category(category)] += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pawn_items
		 WHERE status = 'Active' AND due_date >= ? AND due_date <= ?`,
		today.String(), today.AddDays(model.NearDueDays).String(),
	).Scan(&stats.DueThisWeek)
	if err != nil {
		return nil, fmt.Errorf("counting items due this week: %w", err)
	}
	return stats, nil
}
