package scanning

import "context"

// ReceiptData contains the bill fields read from a receipt image
type ReceiptData struct {
	Name   string  `json:"name"`
	Date   string  `json:"date"` // YYYY-MM-DD, empty when unreadable
	Amount float64 `json:"amount"`
	VAT    float64 `json:"vat"`

	// Category is the expense category as read by the model, not necessarily a catalogue entry
	Category string `json:"category"`
}

// Scanner reads bill fields from a receipt image
type Scanner interface {
	// ScanReceipt analyzes a JPEG or PNG receipt
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error)
	// Close releases the scanner resources
	Close() error
}
