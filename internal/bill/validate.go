package bill

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Messages shown next to the offending form field
const (
	MsgFileType = "Merci de choisir un fichier de type: JPG, PNG ou JPEG"
	MsgNoFile   = "Merci de joindre un justificatif"
	MsgType     = "Merci de choisir un type de dépense"
	MsgDate     = "Merci d'indiquer une date valide"
	MsgAmount   = "Merci d'indiquer un montant valide"
	MsgVAT      = "Merci d'indiquer une TVA valide"
	MsgPct      = "Merci d'indiquer un pourcentage valide"
	MsgEmail    = "Merci de vous reconnecter avant d'envoyer une note de frais"
)

// ValidationError is a local input error tied to one form field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// ContentTypeFor guesses a MIME type from a file extension
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// NormalizeContentType lowercases the declared type, falling back to the extension when it is empty
func NormalizeContentType(contentType, filename string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		ct = ContentTypeFor(filename)
	}
	return ct
}

// ValidateFile checks that a receipt is a JPEG or PNG image
func ValidateFile(u Upload) error {
	if u.Empty() {
		return &ValidationError{Field: "file", Message: MsgNoFile}
	}
	if !acceptedTypes[NormalizeContentType(u.ContentType, u.Name)] {
		return &ValidationError{Field: "file", Message: MsgFileType}
	}
	return nil
}

// FormValues holds the raw text fields of the new bill form
type FormValues struct {
	Type       string
	Name       string
	Date       string
	Amount     string
	VAT        string
	Pct        string
	Commentary string
}

// NewDraft validates form values and builds a pending draft owned by email
func NewDraft(v FormValues, email string, file Upload) (Draft, error) {
	if strings.TrimSpace(email) == "" {
		return Draft{}, &ValidationError{Field: "email", Message: MsgEmail}
	}
	if !IsType(v.Type) {
		return Draft{}, &ValidationError{Field: "type", Message: MsgType}
	}
	date := strings.TrimSpace(v.Date)
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Draft{}, &ValidationError{Field: "date", Message: MsgDate}
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(v.Amount))
	if err != nil || !amount.IsPositive() {
		return Draft{}, &ValidationError{Field: "amount", Message: MsgAmount}
	}
	vat := decimal.Zero
	if s := strings.TrimSpace(v.VAT); s != "" {
		vat, err = decimal.NewFromString(s)
		if err != nil || vat.IsNegative() {
			return Draft{}, &ValidationError{Field: "vat", Message: MsgVAT}
		}
	}
	pct := DefaultPct
	if s := strings.TrimSpace(v.Pct); s != "" {
		pct, err = strconv.Atoi(s)
		if err != nil || pct < 0 || pct > 100 {
			return Draft{}, &ValidationError{Field: "pct", Message: MsgPct}
		}
	}
	if err := ValidateFile(file); err != nil {
		return Draft{}, err
	}

	return Draft{
		Email:      email,
		Type:       v.Type,
		Name:       strings.TrimSpace(v.Name),
		Date:       date,
		Amount:     amount,
		VAT:        vat,
		Pct:        pct,
		Commentary: strings.TrimSpace(v.Commentary),
		Status:     StatusPending,
		File:       file,
	}, nil
}
