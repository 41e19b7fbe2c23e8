package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPawnItemFlattenedJSON(t *testing.T) {
	item := PawnItem{
		ID:           "a1",
		CustomerName: "Mg Mg",
		Category:     CategoryPhone,
		Amount:       150000,
		PawnDate:     NewDate(2025, 1, 15),
		DueDate:      NewDate(2025, 2, 14),
		Status:       StatusActive,
		Details:      PhoneDetails{Brand: "Samsung", IMEI: "123"},
	}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if flat["brand"] != "Samsung" || flat["imei"] != "123" {
		t.Errorf("expected details spread at top level, got %v", flat)
	}
	if _, ok := flat["model"]; ok {
		t.Error("unset detail fields must be omitted")
	}
	if flat["pawnDate"] != "2025-01-15" {
		t.Errorf("expected pawnDate 2025-01-15, got %v", flat["pawnDate"])
	}

	var back PawnItem
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decoding flattened item: %v", err)
	}
	phone, ok := back.Details.(PhoneDetails)
	if !ok {
		t.Fatalf("expected PhoneDetails, got %T", back.Details)
	}
	if phone.Brand != "Samsung" || phone.IMEI != "123" {
		t.Errorf("unexpected details %+v", phone)
	}
}

func TestPawnItemNestedDetailsJSON(t *testing.T) {
	data := []byte(`{"id":"b2","category":"MotoBike","amount":500000,"pawnDate":"2025-03-01",
		"dueDate":"2025-03-31","status":"Active","details":{"make":"Honda","year":2019,"mileage":12000.5}}`)

	var item PawnItem
	if err := json.Unmarshal(data, &item); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	bike, ok := item.Details.(MotoBikeDetails)
	if !ok {
		t.Fatalf("expected MotoBikeDetails, got %T", item.Details)
	}
	if bike.Make != "Honda" || bike.Year == nil || *bike.Year != 2019 {
		t.Errorf("unexpected details %+v", bike)
	}
	if bike.Mileage == nil || *bike.Mileage != 12000.5 {
		t.Errorf("expected mileage 12000.5, got %v", bike.Mileage)
	}
}

func TestPawnRequestDropsForeignDetailKeys(t *testing.T) {
	data := []byte(`{"customerName":"Ma Ma","category":"Watches","amount":1,
		"pawnDate":"2025-01-01","dueDate":"2025-01-31",
		"details":{"watchBrand":"Seiko","brand":"Samsung","imei":"999"}}`)

	var req PawnRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	fields := req.Details.Fields()
	if len(fields) != 1 || fields["watchBrand"] != "Seiko" {
		t.Errorf("expected only watchBrand, got %v", fields)
	}
}

func TestNewDetailsErrors(t *testing.T) {
	if _, err := NewDetails(CategoryBicycle, map[string]string{"gears": "many"}); err == nil {
		t.Error("expected error for non-numeric gears")
	}
	if _, err := NewDetails("Boat", nil); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestPawnRequestValidate(t *testing.T) {
	valid := PawnRequest{
		CustomerName:    "Ko Ko",
		CustomerAddress: "Yangon",
		CustomerNRC:     "12/ABCDEF(N)123456",
		CustomerPhone:   "09123456789",
		Category:        CategoryOthers,
		Amount:          1000,
		PawnDate:        NewDate(2025, 5, 1),
		DueDate:         NewDate(2025, 5, 31),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	backwards := valid
	backwards.DueDate = NewDate(2025, 4, 1)
	if err := backwards.Validate(); err == nil {
		t.Error("expected error when due date precedes pawn date")
	}

	mismatched := valid
	mismatched.Details = PhoneDetails{Brand: "Vivo"}
	if err := mismatched.Validate(); err == nil {
		t.Error("expected error when details do not match category")
	}
}

func TestReportStatusText(t *testing.T) {
	today := NewDate(2025, 6, 10)
	checked := NewDate(2025, 6, 1)

	tests := []struct {
		item ReportItem
		want string
	}{
		{ReportItem{DueDate: today.AddDays(-1), CheckedOutDate: &checked}, ReportCheckedOut},
		{ReportItem{DueDate: today.AddDays(-1)}, ReportOverdue},
		{ReportItem{DueDate: today.AddDays(7)}, ReportNearDue},
		{ReportItem{DueDate: today.AddDays(8)}, ReportActive},
	}
	for _, tt := range tests {
		if got := tt.item.StatusText(today); got != tt.want {
			t.Errorf("StatusText(due %s) = %q, want %q", tt.item.DueDate, got, tt.want)
		}
	}
}
