// Package store is the client side of the remote bill store.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zombor/billed/internal/bill"
)

// Store is the remote store as seen by the employee screens
type Store interface {
	Bills() Bills
}

// Bills is the bills resource of a Store
type Bills interface {
	// List returns the bills of the current user
	List(ctx context.Context) ([]bill.Bill, error)

	// Create uploads the draft receipt and records the bill
	Create(ctx context.Context, draft bill.Draft) (*Created, error)

	// Update replaces the editable fields of the bill stored under key
	Update(ctx context.Context, key string, b bill.Bill) (*bill.Bill, error)
}

// Scanner is implemented by stores able to read a receipt image
type Scanner interface {
	Scan(ctx context.Context, file bill.Upload) (*Suggestion, error)
}

// Created is the store acknowledgement of a new bill
type Created struct {
	FileURL string `json:"fileUrl"`
	Key     string `json:"key"`
}

// Suggestion holds field values read from a receipt
type Suggestion struct {
	Type   string          `json:"type,omitempty"`
	Name   string          `json:"name"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	VAT    decimal.Decimal `json:"vat"`
}

// RemoteError is a failure reported by the remote store
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// NewRemoteError builds the error for an HTTP status, e.g. "Erreur 404"
func NewRemoteError(status int) *RemoteError {
	return &RemoteError{Status: status, Message: fmt.Sprintf("Erreur %d", status)}
}

// Message returns the text to show for a store failure
func Message(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
