// Package form implements the pawn item intake form: a fixed set of
// envelope inputs plus variable inputs attached from the schema registry for
// the selected category.
package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/schema"
)

var (
	// ErrClosed is returned when submitting a form that is not open.
	ErrClosed = errors.New("form is closed")
	// ErrReadOnly is returned when submitting a form opened for viewing.
	ErrReadOnly = errors.New("form is read-only")
	// ErrInvalid is returned when submission is aborted by validation.
	ErrInvalid = errors.New("form is invalid")
)

// Mode is the lifecycle state of a form.
type Mode int

const (
	Closed Mode = iota
	Creating
	Editing
	Viewing
)

func (m Mode) String() string {
	switch m {
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	case Viewing:
		return "viewing"
	default:
		return "closed"
	}
}

// Envelope input keys.
const (
	KeyCustomerName    = "customerName"
	KeyCustomerPhone   = "customerPhone"
	KeyCustomerNRC     = "customerNrc"
	KeyCustomerAddress = "customerAddress"
	KeyCategory        = "category"
	KeyAmount          = "amount"
	KeyPawnDate        = "pawnDate"
	KeyDueDate         = "dueDate"
	KeyDescription     = "description"
)

// EnvelopeKeys lists the envelope inputs in display order.
var EnvelopeKeys = []string{
	KeyCustomerName, KeyCustomerPhone, KeyCustomerNRC, KeyCustomerAddress,
	KeyCategory, KeyAmount, KeyPawnDate, KeyDueDate, KeyDescription,
}

var requiredEnvelope = map[string]bool{
	KeyCustomerName: true, KeyCustomerAddress: true, KeyAmount: true,
	KeyCategory: true, KeyPawnDate: true, KeyDueDate: true,
}

// Service is the transport the form submits through.
type Service interface {
	CreatePawnItem(ctx context.Context, req model.PawnRequest) (*model.Response[model.PawnItem], error)
	UpdatePawnItem(ctx context.Context, id string, req model.PawnRequest) (*model.Response[model.PawnItem], error)
}

// Notifier receives the outcome of a submission.
type Notifier interface {
	Success(title, message string, data any)
	Error(title, message string)
}

// Field is an attached variable input.
type Field struct {
	schema.FieldDescriptor
	Value   string
	Touched bool
}

// Form holds the state of one intake form.
type Form struct {
	registry *schema.Registry
	service  Service
	notifier Notifier
	refetch  func(context.Context)

	mode     Mode
	id       string
	envelope map[string]string
	touched  map[string]bool
	fields   []*Field
	errors   map[string]string
}

// Option configures a Form.
type Option func(*Form)

// WithRefetch sets the hook called after a successful submission.
func WithRefetch(fn func(context.Context)) Option {
	return func(f *Form) { f.refetch = fn }
}

// New returns a closed form.
func New(registry *schema.Registry, service Service, notifier Notifier, opts ...Option) *Form {
	f := &Form{registry: registry, service: service, notifier: notifier}
	for _, opt := range opts {
		opt(f)
	}
	f.reset()
	return f
}

func (f *Form) reset() {
	f.mode = Closed
	f.id = ""
	f.envelope = map[string]string{}
	f.touched = map[string]bool{}
	f.fields = nil
	f.errors = map[string]string{}
}

// OpenCreate opens an empty form. The pawn date defaults to today and the
// due date to today plus the loan period.
func (f *Form) OpenCreate(today model.Date) {
	f.reset()
	f.mode = Creating
	f.envelope[KeyPawnDate] = today.String()
	f.envelope[KeyDueDate] = today.AddDays(model.DueDateOffset).String()
}

// OpenEdit opens the form prefilled from item.
func (f *Form) OpenEdit(item model.PawnItem) {
	f.open(Editing, item)
}

// OpenView opens the form prefilled from item for reading only.
func (f *Form) OpenView(item model.PawnItem) {
	f.open(Viewing, item)
}

func (f *Form) open(mode Mode, item model.PawnItem) {
	f.reset()
	f.mode = mode
	f.id = item.ID
	f.envelope[KeyCustomerName] = item.CustomerName
	f.envelope[KeyCustomerPhone] = item.CustomerPhone
	f.envelope[KeyCustomerNRC] = item.CustomerNRC
	f.envelope[KeyCustomerAddress] = item.CustomerAddress
	f.envelope[KeyAmount] = strconv.FormatFloat(item.Amount, 'f', -1, 64)
	f.envelope[KeyPawnDate] = item.PawnDate.String()
	f.envelope[KeyDueDate] = item.DueDate.String()
	f.envelope[KeyDescription] = item.Description
	f.SelectCategory(item.Category, model.DetailValues(item.Details))
}

// Cancel closes the form and discards uncommitted edits.
func (f *Form) Cancel() {
	f.reset()
}

// Mode returns the lifecycle state.
func (f *Form) Mode() Mode { return f.mode }

// ID returns the id of the item being edited or viewed.
func (f *Form) ID() string { return f.id }

// Category returns the selected category.
func (f *Form) Category() model.Category {
	return model.Category(f.envelope[KeyCategory])
}

// Value returns the current value of an envelope or variable input.
func (f *Form) Value(key string) string {
	if fld := f.field(key); fld != nil {
		return fld.Value
	}
	return f.envelope[key]
}

// Fields returns the attached variable inputs in display order.
func (f *Form) Fields() []Field {
	out := make([]Field, len(f.fields))
	for i, fld := range f.fields {
		out[i] = *fld
	}
	return out
}

// Errors returns the messages of the last validation, keyed by input.
func (f *Form) Errors() map[string]string {
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Touched reports whether the input has been edited or validated.
func (f *Form) Touched(key string) bool {
	if fld := f.field(key); fld != nil {
		return fld.Touched
	}
	return f.touched[key]
}

func (f *Form) field(key string) *Field {
	for _, fld := range f.fields {
		if fld.Key == key {
			return fld
		}
	}
	return nil
}

// SelectCategory removes every variable input and attaches the inputs of
// category, populating them from patch where a key matches.
func (f *Form) SelectCategory(category model.Category, patch map[string]string) {
	f.envelope[KeyCategory] = string(category)
	f.fields = nil
	for _, d := range f.registry.FieldsFor(category) {
		f.fields = append(f.fields, &Field{FieldDescriptor: d, Value: patch[d.Key]})
	}
}

// Set changes one input. Changing the category re-attaches the variable
// inputs; changing the pawn date moves the due date along unless the due
// date was already changed by hand. Unknown keys are ignored.
func (f *Form) Set(key, value string) {
	if f.mode == Closed || f.mode == Viewing {
		return
	}
	if fld := f.field(key); fld != nil {
		fld.Value = value
		fld.Touched = true
		return
	}

	switch key {
	case KeyCategory:
		if value != f.envelope[KeyCategory] {
			f.SelectCategory(model.Category(value), nil)
		}
	case KeyPawnDate:
		f.movePawnDate(value)
	default:
		if !isEnvelopeKey(key) {
			return
		}
		f.envelope[key] = value
	}
	f.touched[key] = true
}

func (f *Form) movePawnDate(value string) {
	oldPawn, err := model.ParseDate(f.envelope[KeyPawnDate])
	f.envelope[KeyPawnDate] = value
	if err != nil {
		return
	}
	newPawn, err := model.ParseDate(value)
	if err != nil || newPawn.IsZero() {
		return
	}
	due := f.envelope[KeyDueDate]
	if due == "" || (!oldPawn.IsZero() && due == oldPawn.AddDays(model.DueDateOffset).String()) {
		f.envelope[KeyDueDate] = newPawn.AddDays(model.DueDateOffset).String()
	}
}

// Fill applies submitted values: the category first, then every other
// input as given. A new pawn date submitted with the due date unchanged
// moves the due date as Set does.
func (f *Form) Fill(values map[string]string) {
	if f.mode == Closed || f.mode == Viewing {
		return
	}
	if c, ok := values[KeyCategory]; ok {
		f.Set(KeyCategory, c)
	}
	derived := false
	if p, ok := values[KeyPawnDate]; ok && p != f.envelope[KeyPawnDate] {
		if d, ok := values[KeyDueDate]; !ok || d == f.envelope[KeyDueDate] {
			f.Set(KeyPawnDate, p)
			f.touched[KeyDueDate] = true
			derived = true
		}
	}
	for _, key := range EnvelopeKeys {
		if key == KeyCategory || (derived && (key == KeyPawnDate || key == KeyDueDate)) {
			continue
		}
		if v, ok := values[key]; ok {
			f.envelope[key] = v
			f.touched[key] = true
		}
	}
	for _, fld := range f.fields {
		if v, ok := values[fld.Key]; ok {
			fld.Value = v
			fld.Touched = true
		}
	}
}

func isEnvelopeKey(key string) bool {
	for _, k := range EnvelopeKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Validate checks every input and marks all inputs touched. It reports
// whether the form is valid; messages are available from Errors.
func (f *Form) Validate() bool {
	errs := map[string]string{}

	for _, key := range EnvelopeKeys {
		f.touched[key] = true
		if requiredEnvelope[key] && strings.TrimSpace(f.envelope[key]) == "" {
			errs[key] = "This field is required"
		}
	}

	if _, ok := errs[KeyCustomerNRC]; !ok && !model.ValidNRC(f.envelope[KeyCustomerNRC]) {
		errs[KeyCustomerNRC] = "Invalid NRC format (" + model.NRCFormat + ")"
	}
	if !model.ValidPhone(f.envelope[KeyCustomerPhone]) {
		errs[KeyCustomerPhone] = "Invalid phone number"
	}
	if _, ok := errs[KeyAmount]; !ok {
		amount, err := strconv.ParseFloat(strings.TrimSpace(f.envelope[KeyAmount]), 64)
		if err != nil || amount <= 0 {
			errs[KeyAmount] = "Amount must be greater than 0"
		}
	}
	if _, ok := errs[KeyCategory]; !ok {
		if _, err := f.registry.Lookup(f.Category()); err != nil || !f.Category().Valid() {
			errs[KeyCategory] = "Unknown category"
		}
	}

	pawn, perr := model.ParseDate(strings.TrimSpace(f.envelope[KeyPawnDate]))
	if perr != nil {
		errs[KeyPawnDate] = "Invalid date"
	}
	due, derr := model.ParseDate(strings.TrimSpace(f.envelope[KeyDueDate]))
	if derr != nil {
		errs[KeyDueDate] = "Invalid date"
	}
	if perr == nil && derr == nil && !pawn.IsZero() && !due.IsZero() && due.Before(pawn) {
		errs[KeyDueDate] = "Due date must not be before pawn date"
	}

	for _, fld := range f.fields {
		fld.Touched = true
		v := strings.TrimSpace(fld.Value)
		switch {
		case v == "":
			if fld.Required {
				errs[fld.Key] = "This field is required"
			}
		case fld.Input == schema.InputNumber:
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				errs[fld.Key] = "Must be a number"
			}
		case fld.Input == schema.InputSelect:
			if !fld.HasOption(v) {
				errs[fld.Key] = "Choose one of the listed options"
			}
		}
	}
	if len(errs) == 0 && f.Category().Valid() {
		if _, err := model.NewDetails(f.Category(), f.detailValues()); err != nil {
			errs["details"] = err.Error()
		}
	}

	f.errors = errs
	return len(errs) == 0
}

// detailValues returns the non-empty values of the attached inputs only.
// Values entered under a previous category are never included.
func (f *Form) detailValues() map[string]string {
	out := map[string]string{}
	for _, fld := range f.fields {
		if v := strings.TrimSpace(fld.Value); v != "" {
			out[fld.Key] = v
		}
	}
	return out
}

// Payload serializes the form into the create/update request.
func (f *Form) Payload() (model.PawnRequest, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(f.envelope[KeyAmount]), 64)
	if err != nil {
		return model.PawnRequest{}, fmt.Errorf("parsing amount: %w", err)
	}
	pawn, err := model.ParseDate(strings.TrimSpace(f.envelope[KeyPawnDate]))
	if err != nil {
		return model.PawnRequest{}, err
	}
	due, err := model.ParseDate(strings.TrimSpace(f.envelope[KeyDueDate]))
	if err != nil {
		return model.PawnRequest{}, err
	}
	details, err := model.NewDetails(f.Category(), f.detailValues())
	if err != nil {
		return model.PawnRequest{}, fmt.Errorf("building details: %w", err)
	}

	return model.PawnRequest{
		CustomerName:    strings.TrimSpace(f.envelope[KeyCustomerName]),
		CustomerPhone:   strings.TrimSpace(f.envelope[KeyCustomerPhone]),
		CustomerNRC:     strings.ToUpper(strings.TrimSpace(f.envelope[KeyCustomerNRC])),
		CustomerAddress: strings.TrimSpace(f.envelope[KeyCustomerAddress]),
		Category:        f.Category(),
		Amount:          amount,
		PawnDate:        pawn,
		DueDate:         due,
		Description:     strings.TrimSpace(f.envelope[KeyDescription]),
		Details:         details,
	}, nil
}

// Submit validates the form and sends it to the service. On success the
// notifier is told, the form closes and the refetch hook runs. On failure
// the notifier gets the server message and the form stays open.
func (f *Form) Submit(ctx context.Context) error {
	switch f.mode {
	case Closed:
		return ErrClosed
	case Viewing:
		return ErrReadOnly
	}
	if !f.Validate() {
		return ErrInvalid
	}

	req, err := f.Payload()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var resp *model.Response[model.PawnItem]
	if f.mode == Creating {
		resp, err = f.service.CreatePawnItem(ctx, req)
	} else {
		resp, err = f.service.UpdatePawnItem(ctx, f.id, req)
	}
	if err != nil {
		f.notifier.Error("Error", messageOf(err))
		return fmt.Errorf("submitting pawn item: %w", err)
	}
	if resp == nil || !resp.OK() {
		msg := model.GenericErrorMessage
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		f.notifier.Error("Error", msg)
		return fmt.Errorf("submitting pawn item: %s", msg)
	}

	msg := resp.Message
	if msg == "" {
		msg = "Pawn item saved"
	}
	f.notifier.Success("Success", msg, resp.Data)
	f.reset()
	if f.refetch != nil {
		f.refetch(ctx)
	}
	return nil
}

func messageOf(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return model.GenericErrorMessage
}
