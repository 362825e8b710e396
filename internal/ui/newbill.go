package ui

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
)

var (
	// ErrSubmitting is returned when the form is asked to act while a store call is in flight
	ErrSubmitting = errors.New("a submission is already in progress")

	// ErrSubmitted is returned once the bill was accepted by the store
	ErrSubmitted = errors.New("bill already submitted")

	// ErrNoScanner is returned by Prefill when the store cannot read receipts
	ErrNoScanner = errors.New("store cannot scan receipts")
)

type formState int

const (
	formEditing formState = iota
	formReady
	formSubmitting
	formDone
)

type formView struct {
	Action     string
	Types      []string
	Values     bill.FormValues
	FileName   string
	Errors     map[string]string
	FormError  string
	Submitting bool
	CanScan    bool
}

// BillForm is the "Envoyer une note de frais" screen. It owns one draft:
// the field values typed so far and the receipt accepted by SelectFile.
type BillForm struct {
	screen *Screen
	deps   Deps

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	unmounted bool
	state     formState
	values    bill.FormValues
	file      bill.Upload
	errors    map[string]string
	formError string
}

// NewBillForm creates the new bill form drawing on screen
func NewBillForm(screen *Screen, deps Deps) *BillForm {
	return &BillForm{
		screen: screen,
		deps:   deps,
		ctx:    context.Background(),
		errors: make(map[string]string),
	}
}

// Mount shows an empty form
func (f *BillForm) Mount(ctx context.Context) error {
	if _, ok := f.deps.Session.CurrentUser(); !ok {
		return session.ErrNoSession
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx, f.cancel = context.WithCancel(ctx)
	return f.draw()
}

// Unmount stops drawing; a store call still in flight is cancelled and its result dropped
func (f *BillForm) Unmount() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmounted = true
	if f.cancel != nil {
		f.cancel()
	}
}

// draw must be called with f.mu held
func (f *BillForm) draw() error {
	if f.unmounted {
		return nil
	}
	_, canScan := f.deps.Store.(store.Scanner)
	return f.screen.show(NewBill, "Envoyer une note de frais", "newbill", formView{
		Action:     NewBill.Path(),
		Types:      bill.Types,
		Values:     f.values,
		FileName:   f.file.Name,
		Errors:     f.errors,
		FormError:  f.formError,
		Submitting: f.state == formSubmitting,
		CanScan:    canScan,
	})
}

// busy reports why the form cannot start another action; f.mu must be held
func (f *BillForm) busy() error {
	switch f.state {
	case formSubmitting:
		return ErrSubmitting
	case formDone:
		return ErrSubmitted
	}
	return nil
}

// SelectFile validates a receipt and keeps it as the draft attachment.
// A rejected file leaves the previously accepted one in place.
func (f *BillForm) SelectFile(file bill.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.busy(); err != nil {
		return err
	}

	if err := bill.ValidateFile(file); err != nil {
		var ve *bill.ValidationError
		if errors.As(err, &ve) {
			f.errors["file"] = ve.Message
		}
		if drawErr := f.draw(); drawErr != nil {
			return drawErr
		}
		return err
	}

	file.ContentType = bill.NormalizeContentType(file.ContentType, file.Name)
	f.file = file
	delete(f.errors, "file")
	f.state = formReady
	return f.draw()
}

// Attachment returns the accepted receipt, if any
func (f *BillForm) Attachment() (bill.Upload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file, !f.file.Empty()
}

// setValidation shows a local error next to its field; f.mu must be held
func (f *BillForm) setValidation(err error) {
	var ve *bill.ValidationError
	if !errors.As(err, &ve) {
		f.formError = err.Error()
		return
	}
	switch ve.Field {
	case "email":
		f.formError = ve.Message
	default:
		f.errors[ve.Field] = ve.Message
	}
}

// begin moves the form to submitting and returns the context for the store call; f.mu must be held
func (f *BillForm) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	f.state = formSubmitting
	f.formError = ""
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(f.ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

// Submit validates values with the session email and the accepted receipt,
// creates the bill and navigates to the bills list.
// Validation failures never reach the store. Store failures are shown on the form.
func (f *BillForm) Submit(ctx context.Context, values bill.FormValues) error {
	f.mu.Lock()
	if err := f.busy(); err != nil {
		f.mu.Unlock()
		return err
	}

	f.values = values
	f.formError = ""
	rejected := f.errors["file"]
	f.errors = make(map[string]string)

	var email string
	if u, ok := f.deps.Session.CurrentUser(); ok {
		email = u.Email
	}
	draft, err := bill.NewDraft(values, email, f.file)
	if err != nil {
		f.setValidation(err)
		if rejected != "" && f.file.Empty() {
			f.errors["file"] = rejected
		}
		if drawErr := f.draw(); drawErr != nil {
			slog.Error("Error rendering bill form", "error", drawErr)
		}
		f.mu.Unlock()
		return err
	}

	callCtx, done := f.begin(ctx)
	if err := f.draw(); err != nil {
		slog.Error("Error rendering bill form", "error", err)
	}
	f.mu.Unlock()

	_, err = f.deps.Store.Bills().Create(callCtx, draft)
	done()

	f.mu.Lock()
	if f.unmounted {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		slog.Warn("Failed to create bill", "email", email, "error", err)
		f.state = formReady
		f.formError = store.Message(err)
		if drawErr := f.draw(); drawErr != nil {
			slog.Error("Error rendering bill form", "error", drawErr)
		}
		f.mu.Unlock()
		return err
	}
	f.state = formDone
	f.mu.Unlock()

	return f.deps.Navigator.Navigate(ctx, Bills)
}

// Prefill sends the accepted receipt to the store scanner and fills the blank
// fields with what it read.
func (f *BillForm) Prefill(ctx context.Context) error {
	scanner, ok := f.deps.Store.(store.Scanner)
	if !ok {
		return ErrNoScanner
	}

	f.mu.Lock()
	if err := f.busy(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.file.Empty() {
		err := bill.ValidateFile(f.file)
		if rejected := f.errors["file"]; rejected != "" {
			err = &bill.ValidationError{Field: "file", Message: rejected}
		} else {
			f.setValidation(err)
		}
		if drawErr := f.draw(); drawErr != nil {
			slog.Error("Error rendering bill form", "error", drawErr)
		}
		f.mu.Unlock()
		return err
	}
	file := f.file
	callCtx, done := f.begin(ctx)
	f.mu.Unlock()

	suggestion, err := scanner.Scan(callCtx, file)
	done()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unmounted {
		return nil
	}
	f.state = formReady
	if err != nil {
		slog.Warn("Failed to scan receipt", "filename", file.Name, "error", err)
		f.formError = store.Message(err)
		if drawErr := f.draw(); drawErr != nil {
			return drawErr
		}
		return err
	}

	if f.values.Type == "" {
		f.values.Type = suggestion.Type
	}
	if f.values.Name == "" {
		f.values.Name = suggestion.Name
	}
	if f.values.Date == "" {
		f.values.Date = suggestion.Date
	}
	if f.values.Amount == "" && suggestion.Amount.IsPositive() {
		f.values.Amount = suggestion.Amount.StringFixed(2)
	}
	if f.values.VAT == "" && suggestion.VAT.IsPositive() {
		f.values.VAT = suggestion.VAT.StringFixed(2)
	}
	return f.draw()
}
