package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/scanning"
)

// FileURLTTL is how long a receipt link stays valid
const FileURLTTL = 15 * time.Minute

// ErrScannerDisabled is returned by ScanReceipt when no scanner is configured
var ErrScannerDisabled = errors.New("receipt scanner is not configured")

// IDGenerator generates unique IDs for bills
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Service handles bill operations behind the API
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	signer      *Signer
	publicURL   string
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service; scanner may be nil.
// publicURL is the externally visible base of the server, used to build receipt links.
func NewService(db DB, scanner scanning.Scanner, storage Storage, signer *Signer, publicURL string) *Service {
	return NewServiceWithDeps(db, scanner, storage, signer, publicURL, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, signer *Signer, publicURL string, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		signer:      signer,
		publicURL:   strings.TrimSuffix(publicURL, "/"),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename keeps receipt names short and filesystem safe
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaces.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "justificatif"
	}
	return base + ext
}

// CreateBill stores the receipt and records a pending bill
func (s *Service) CreateBill(ctx context.Context, draft bill.Draft) (*bill.Bill, error) {
	if err := bill.ValidateFile(draft.File); err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	contentType := bill.NormalizeContentType(draft.File.ContentType, draft.File.Name)

	key, err := s.storage.Save(ctx, fmt.Sprintf("%s_%s", id, sanitizeFilename(draft.File.Name)), contentType, draft.File.Data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	b := draft.Bill()
	b.ID = id
	b.Status = bill.StatusPending
	b.FileKey = key
	b.ContentType = contentType
	b.CreatedAt = now
	b.UpdatedAt = now

	if err := s.db.SaveBill(ctx, &b); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			slog.Warn("Failed to clean up receipt", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	b.FileURL = s.fileURL(ctx, &b)
	return &b, nil
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(ctx context.Context, id string) (*bill.Bill, error) {
	b, err := s.db.GetBill(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	b.FileURL = s.fileURL(ctx, b)
	return b, nil
}

// ListBills returns the bills owned by email, or all bills when email is empty
func (s *Service) ListBills(ctx context.Context, email string) ([]*bill.Bill, error) {
	bills, err := s.db.ListBills(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	for _, b := range bills {
		b.FileURL = s.fileURL(ctx, b)
	}
	return bills, nil
}

// UpdateBill applies the non-empty editable fields of patch to a pending bill
func (s *Service) UpdateBill(ctx context.Context, id string, patch bill.Bill) (*bill.Bill, error) {
	b, err := s.db.GetBill(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting bill for update: %w", err)
	}
	if b.Status != bill.StatusPending {
		return nil, fmt.Errorf("bill %s is %s and can no longer be changed", id, b.Status)
	}

	if patch.Type != "" {
		if !bill.IsType(patch.Type) {
			return nil, &bill.ValidationError{Field: "type", Message: bill.MsgType}
		}
		b.Type = patch.Type
	}
	if patch.Date != "" {
		if _, ok := patch.ParsedDate(); !ok {
			return nil, &bill.ValidationError{Field: "date", Message: bill.MsgDate}
		}
		b.Date = patch.Date
	}
	if !patch.Amount.IsZero() {
		if !patch.Amount.IsPositive() {
			return nil, &bill.ValidationError{Field: "amount", Message: bill.MsgAmount}
		}
		b.Amount = patch.Amount
	}
	if !patch.VAT.IsZero() {
		b.VAT = patch.VAT
	}
	if patch.Pct != 0 {
		b.Pct = patch.Pct
	}
	if patch.Name != "" {
		b.Name = patch.Name
	}
	if patch.Commentary != "" {
		b.Commentary = patch.Commentary
	}
	b.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(ctx, b); err != nil {
		return nil, fmt.Errorf("updating bill %s: %w", id, err)
	}
	b.FileURL = s.fileURL(ctx, b)
	return b, nil
}

// DeleteBill removes a bill and its receipt
func (s *Service) DeleteBill(ctx context.Context, id string) error {
	b, err := s.db.GetBill(ctx, id)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if err := s.storage.Delete(ctx, b.FileKey); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete receipt", "key", b.FileKey, "error", err)
	}

	if err := s.db.DeleteBill(ctx, id); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}

// GetBillFile returns the receipt bytes and content type of a bill
func (s *Service) GetBillFile(ctx context.Context, id string) ([]byte, string, error) {
	b, err := s.db.GetBill(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}
	data, err := s.storage.Get(ctx, b.FileKey)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, b.ContentType, nil
}

// Suggestion holds bill fields read from a receipt
type Suggestion struct {
	Type   string          `json:"type,omitempty"`
	Name   string          `json:"name"`
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	VAT    decimal.Decimal `json:"vat"`
}

// ScanReceipt reads suggested bill fields from a receipt image
func (s *Service) ScanReceipt(ctx context.Context, file bill.Upload) (*Suggestion, error) {
	if s.scanner == nil {
		return nil, ErrScannerDisabled
	}
	if err := bill.ValidateFile(file); err != nil {
		return nil, err
	}

	data, err := s.scanner.ScanReceipt(ctx, file.Data, bill.NormalizeContentType(file.ContentType, file.Name))
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", file.Name,
			"content_type", file.ContentType,
			"file_size", len(file.Data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	// An unknown category leaves the type blank
	billType, _ := bill.MatchType(data.Category)

	return &Suggestion{
		Type:   billType,
		Name:   data.Name,
		Date:   data.Date,
		Amount: decimal.NewFromFloat(data.Amount).Round(2),
		VAT:    decimal.NewFromFloat(data.VAT).Round(2),
	}, nil
}

// VerifyFileLink reports whether a signed receipt link is valid for id
func (s *Service) VerifyFileLink(id, expires, signature string) bool {
	if s.signer == nil {
		return false
	}
	return s.signer.Validate(id, expires, signature)
}

// fileURL builds the link a browser uses to display a receipt
func (s *Service) fileURL(ctx context.Context, b *bill.Bill) string {
	if signer, ok := s.storage.(URLSigner); ok {
		u, err := signer.SignedURL(ctx, b.FileKey, FileURLTTL)
		if err == nil {
			return u
		}
		slog.Warn("Failed to presign receipt", "key", b.FileKey, "error", err)
	}

	link := fmt.Sprintf("%s/api/bills/%s/file", s.publicURL, url.PathEscape(b.ID))
	if s.signer == nil {
		return link
	}
	expires := s.timeSource.Now().Add(FileURLTTL).Unix()
	q := url.Values{}
	q.Set("expires", fmt.Sprintf("%d", expires))
	q.Set("sig", s.signer.Sign(b.ID, expires))
	return link + "?" + q.Encode()
}
