package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
)

// Deps are the collaborators shared by the employee screens
type Deps struct {
	Store     store.Store
	Session   session.Context
	Navigator Navigator
}

// State is what the bills list shows: Loading, Failed or Loaded
type State interface {
	isState()
}

// Loading shows the loading indicator
type Loading struct{}

// Failed shows the error page with Message
type Failed struct {
	Message string
}

// Loaded shows the bills table
type Loaded struct {
	Bills []bill.Bill
}

func (Loading) isState() {}
func (Failed) isState()  {}
func (Loaded) isState()  {}

// ErrUnknownBill is returned when inspecting a row that is not displayed
var ErrUnknownBill = errors.New("bill not displayed")

type receiptModal struct {
	URL    string
	Name   string
	Status string
}

type billsView struct {
	Rows        []bill.Bill
	Modal       *receiptModal
	BillsPath   string
	NewBillPath string
}

// BillsList is the "Mes notes de frais" screen
type BillsList struct {
	screen *Screen
	deps   Deps

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	unmounted bool
	state     State
	rows      []bill.Bill
	modal     *receiptModal
}

// NewBillsList creates the bills list drawing on screen
func NewBillsList(screen *Screen, deps Deps) *BillsList {
	return &BillsList{
		screen: screen,
		deps:   deps,
		ctx:    context.Background(),
	}
}

// Mount loads the bills of the current user
func (b *BillsList) Mount(ctx context.Context) error {
	if _, ok := b.deps.Session.CurrentUser(); !ok {
		return session.ErrNoSession
	}

	b.mu.Lock()
	b.ctx, b.cancel = context.WithCancel(ctx)
	mountCtx := b.ctx
	b.mu.Unlock()

	return b.FetchAndRender(mountCtx)
}

// Unmount stops drawing; a list request still in flight is cancelled and its result dropped
func (b *BillsList) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unmounted = true
	if b.cancel != nil {
		b.cancel()
	}
}

// Render draws state. Loaded bills are shown most recent first.
func (b *BillsList) Render(state State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = state
	b.modal = nil
	if loaded, ok := state.(Loaded); ok {
		b.rows = bill.SortByDateDesc(loaded.Bills)
	} else {
		b.rows = nil
	}
	return b.draw()
}

// draw must be called with b.mu held
func (b *BillsList) draw() error {
	if b.unmounted {
		return nil
	}
	switch s := b.state.(type) {
	case Loading:
		return b.screen.show(Bills, "Mes notes de frais", "loading", nil)
	case Failed:
		return b.screen.show(Bills, "Erreur", "error", s)
	case Loaded:
		return b.screen.show(Bills, "Mes notes de frais", "bills", billsView{
			Rows:        b.rows,
			Modal:       b.modal,
			BillsPath:   Bills.Path(),
			NewBillPath: NewBill.Path(),
		})
	default:
		return fmt.Errorf("unknown bills list state %T", b.state)
	}
}

// FetchAndRender shows the loading state, lists the bills and shows the result.
// A store failure is shown as the error page and is not returned.
func (b *BillsList) FetchAndRender(ctx context.Context) error {
	if err := b.Render(Loading{}); err != nil {
		return err
	}

	b.mu.Lock()
	mountCtx := b.ctx
	b.mu.Unlock()

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(mountCtx, cancel)
	defer stop()

	bills, err := b.deps.Store.Bills().List(callCtx)
	if err != nil {
		slog.Warn("Failed to list bills", "error", err)
		return b.Render(Failed{Message: store.Message(err)})
	}
	return b.Render(Loaded{Bills: bills})
}

// InspectReceipt opens the receipt modal for the displayed bill id.
// It only reads the rows already shown.
func (b *BillsList) InspectReceipt(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, row := range b.rows {
		if row.ID == id {
			b.modal = &receiptModal{
				URL:    row.FileURL,
				Name:   row.Name,
				Status: row.Status.Label(),
			}
			return b.draw()
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownBill, id)
}

// CreateNew goes to the new bill form
func (b *BillsList) CreateNew(ctx context.Context) error {
	return b.deps.Navigator.Navigate(ctx, NewBill)
}

// Rows returns the bills in display order
func (b *BillsList) Rows() []bill.Bill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]bill.Bill, len(b.rows))
	copy(out, b.rows)
	return out
}
