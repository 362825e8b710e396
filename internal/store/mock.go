package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/zombor/billed/internal/bill"
)

// FixtureBills returns the sample bills served by a fresh Mock
func FixtureBills() []bill.Bill {
	return []bill.Bill{
		{
			ID:           "47qAXb6fIm2zOKkLzMro",
			Email:        "a@a",
			Type:         "Hôtel et logement",
			Name:         "encore",
			Date:         "2004-04-04",
			Amount:       decimal.NewFromInt(400),
			VAT:          decimal.NewFromInt(80),
			Pct:          20,
			Commentary:   "séminaire billed",
			CommentAdmin: "ok",
			FileURL:      "https://localhost:3456/images/preview-facture-free-201801-pdf-1.jpg",
			FileName:     "preview-facture-free-201801-pdf-1.jpg",
			Status:       bill.StatusPending,
		},
		{
			ID:           "BeKy5Mo4jkmdfPGYpTxZ",
			Email:        "a@a",
			Type:         "Transports",
			Name:         "test1",
			Date:         "2001-01-01",
			Amount:       decimal.NewFromInt(100),
			Pct:          20,
			Commentary:   "plop",
			CommentAdmin: "en fait non",
			FileURL:      "https://localhost:3456/images/1592770761.jpeg",
			FileName:     "1592770761.jpeg",
			Status:       bill.StatusRefused,
		},
		{
			ID:           "UIUZtnPQvnbFnB0ozvJh",
			Email:        "a@a",
			Type:         "Services en ligne",
			Name:         "test3",
			Date:         "2003-03-03",
			Amount:       decimal.NewFromInt(300),
			VAT:          decimal.NewFromInt(60),
			Pct:          20,
			CommentAdmin: "bon bah d'accord",
			FileURL:      "https://localhost:3456/images/facture-client-php-exportee.png",
			FileName:     "facture-client-php-exportee.png",
			Status:       bill.StatusAccepted,
		},
		{
			ID:           "qcCK3SzECmaZAGRrHjaC",
			Email:        "a@a",
			Type:         "Restaurants et bars",
			Name:         "test2",
			Date:         "2002-02-02",
			Amount:       decimal.NewFromInt(200),
			VAT:          decimal.NewFromInt(40),
			Pct:          20,
			Commentary:   "test2",
			CommentAdmin: "pas la bonne facture",
			FileURL:      "https://localhost:3456/images/preview-facture-free-201801-pdf-1.jpg",
			FileName:     "preview-facture-free-201801-pdf-1.jpg",
			Status:       bill.StatusRefused,
		},
	}
}

// Mock is a scripted Store for tests
type Mock struct {
	mu sync.Mutex

	bills      []bill.Bill
	created    Created
	suggestion Suggestion

	listErrs   []error
	createErrs []error
	updateErrs []error
	scanErrs   []error

	// block, when set, makes Create wait until it is closed or ctx is done
	block chan struct{}

	ListCalls   int
	CreateCalls int
	UpdateCalls int
	ScanCalls   int
	Drafts      []bill.Draft
	Updates     []bill.Bill
}

// NewMock returns a Mock serving FixtureBills
func NewMock() *Mock {
	return &Mock{
		bills:   FixtureBills(),
		created: Created{FileURL: "https://localhost:3456/images/test.jpg", Key: "1234"},
		suggestion: Suggestion{
			Type:   "Hôtel et logement",
			Name:   "Hôtel du Centre",
			Date:   "2024-01-15",
			Amount: decimal.RequireFromString("120.50"),
			VAT:    decimal.RequireFromString("20.08"),
		},
	}
}

// SetBills replaces the bills returned by List
func (m *Mock) SetBills(bills []bill.Bill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bills = bills
}

// FailListOnce makes the next List call return err
func (m *Mock) FailListOnce(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErrs = append(m.listErrs, err)
}

// FailCreateOnce makes the next Create call return err
func (m *Mock) FailCreateOnce(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErrs = append(m.createErrs, err)
}

// FailUpdateOnce makes the next Update call return err
func (m *Mock) FailUpdateOnce(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErrs = append(m.updateErrs, err)
}

// FailScanOnce makes the next Scan call return err
func (m *Mock) FailScanOnce(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanErrs = append(m.scanErrs, err)
}

// BlockCreate makes Create wait until the returned release func is called
func (m *Mock) BlockCreate() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.block = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Bills returns the scripted bills resource
func (m *Mock) Bills() Bills {
	return &mockBills{m: m}
}

// Scan returns the scripted suggestion
func (m *Mock) Scan(ctx context.Context, file bill.Upload) (*Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScanCalls++
	if err := pop(&m.scanErrs); err != nil {
		return nil, err
	}
	s := m.suggestion
	return &s, nil
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

type mockBills struct {
	m *Mock
}

func (b *mockBills) List(ctx context.Context) ([]bill.Bill, error) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	b.m.ListCalls++
	if err := pop(&b.m.listErrs); err != nil {
		return nil, err
	}
	out := make([]bill.Bill, len(b.m.bills))
	copy(out, b.m.bills)
	return out, nil
}

func (b *mockBills) Create(ctx context.Context, draft bill.Draft) (*Created, error) {
	b.m.mu.Lock()
	b.m.CreateCalls++
	b.m.Drafts = append(b.m.Drafts, draft)
	err := pop(&b.m.createErrs)
	created := b.m.created
	block := b.m.block
	b.m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (b *mockBills) Update(ctx context.Context, key string, bl bill.Bill) (*bill.Bill, error) {
	b.m.mu.Lock()
	defer b.m.mu.Unlock()
	b.m.UpdateCalls++
	b.m.Updates = append(b.m.Updates, bl)
	if err := pop(&b.m.updateErrs); err != nil {
		return nil, err
	}
	bl.ID = key
	return &bl, nil
}
