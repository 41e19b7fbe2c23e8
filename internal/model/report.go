package model

// ReportItem is the read-only projection of a pawn item shown in reports.
type ReportItem struct {
	No             int      `json:"no"`
	ID             string   `json:"id"`
	CustomerName   string   `json:"customerName"`
	CustomerNRC    string   `json:"customerNRC"`
	ItemType       Category `json:"itemType"`
	Amount         float64  `json:"amount"`
	PawnDate       Date     `json:"pawnDate"`
	DueDate        Date     `json:"dueDate"`
	CheckedOutDate *Date    `json:"checkedOutDate"`
	CheckedOutBy   string   `json:"checkedOutBy,omitempty"`
}

// Report statuses, derived from checkout and due dates.
const (
	ReportCheckedOut = "Checked Out"
	ReportOverdue    = "Overdue"
	ReportNearDue    = "Near Due"
	ReportActive     = "Active"
)

// NearDueDays is how close the due date must be for an item to count as near due.
const NearDueDays = 7

// StatusText classifies the report row relative to today.
func (r ReportItem) StatusText(today Date) string {
	switch {
	case r.CheckedOutDate != nil:
		return ReportCheckedOut
	case r.DueDate.Before(today):
		return ReportOverdue
	case !r.DueDate.After(today.AddDays(NearDueDays)):
		return ReportNearDue
	default:
		return ReportActive
	}
}
