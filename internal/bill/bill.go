package bill

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for bill dates
const DateLayout = "2006-01-02"

// DefaultPct is the VAT percentage applied when the form leaves it blank
const DefaultPct = 20

// Status is the review state of a bill
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// Label returns the text shown to employees for a status
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "En attente"
	case StatusAccepted:
		return "Accepté"
	case StatusRefused:
		return "Refusé"
	default:
		return string(s)
	}
}

// Types is the fixed catalogue of expense categories, in display order
var Types = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}

// IsType reports whether t belongs to the expense catalogue
func IsType(t string) bool {
	for _, known := range Types {
		if known == t {
			return true
		}
	}
	return false
}

// Bill represents a single expense report
type Bill struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Type         string          `json:"type"`
	Name         string          `json:"name"`
	Date         string          `json:"date"` // YYYY-MM-DD
	Amount       decimal.Decimal `json:"amount"`
	VAT          decimal.Decimal `json:"vat"`
	Pct          int             `json:"pct"`
	Commentary   string          `json:"commentary"`
	CommentAdmin string          `json:"commentAdmin,omitempty"`
	FileURL      string          `json:"fileUrl"`
	FileName     string          `json:"fileName"`
	FileKey      string          `json:"fileKey,omitempty"` // storage key of the receipt
	ContentType  string          `json:"contentType,omitempty"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ParsedDate returns the bill date and whether it could be parsed
func (b Bill) ParsedDate() (time.Time, bool) {
	d, err := time.Parse(DateLayout, b.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Upload is a receipt file as received from a form, before it is stored
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Empty reports whether no file was attached
func (u Upload) Empty() bool {
	return u.Name == "" && len(u.Data) == 0
}

// Draft is an unsaved bill built from form fields
type Draft struct {
	Email      string
	Type       string
	Name       string
	Date       string
	Amount     decimal.Decimal
	VAT        decimal.Decimal
	Pct        int
	Commentary string
	Status     Status
	File       Upload
}

// Bill returns the record a draft becomes once its receipt is stored
func (d Draft) Bill() Bill {
	status := d.Status
	if status == "" {
		status = StatusPending
	}
	return Bill{
		Email:       d.Email,
		Type:        d.Type,
		Name:        d.Name,
		Date:        d.Date,
		Amount:      d.Amount,
		VAT:         d.VAT,
		Pct:         d.Pct,
		Commentary:  d.Commentary,
		FileName:    d.File.Name,
		ContentType: d.File.ContentType,
		Status:      status,
	}
}
