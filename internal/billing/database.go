package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/billed/internal/bill"
)

const billsBucket = "bills"

// ErrNotFound is returned when a bill does not exist
var ErrNotFound = errors.New("bill not found")

// DB defines the interface for bill persistence
type DB interface {
	// SaveBill inserts or replaces a bill
	SaveBill(ctx context.Context, b *bill.Bill) error

	// GetBill retrieves a bill by ID
	GetBill(ctx context.Context, id string) (*bill.Bill, error)

	// ListBills returns the bills owned by email, or every bill when email is empty
	ListBills(ctx context.Context, email string) ([]*bill.Bill, error)

	// DeleteBill removes a bill
	DeleteBill(ctx context.Context, id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens or creates the database file at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(billsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveBill saves a bill to the database
func (b *BoltDB) SaveBill(_ context.Context, bl *bill.Bill) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(bl)
		if err != nil {
			return fmt.Errorf("marshaling bill: %w", err)
		}
		return tx.Bucket([]byte(billsBucket)).Put([]byte(bl.ID), data)
	})
}

// GetBill retrieves a bill by ID
func (b *BoltDB) GetBill(_ context.Context, id string) (*bill.Bill, error) {
	var bl *bill.Bill
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(billsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &bl)
	})
	if err != nil {
		return nil, err
	}
	return bl, nil
}

// ListBills returns bills ordered by creation time
func (b *BoltDB) ListBills(_ context.Context, email string) ([]*bill.Bill, error) {
	bills := make([]*bill.Bill, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(billsBucket)).ForEach(func(k, v []byte) error {
			var bl bill.Bill
			if err := json.Unmarshal(v, &bl); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			if email == "" || bl.Email == email {
				bills = append(bills, &bl)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(bills, func(i, j int) bool {
		return bills[i].CreatedAt.Before(bills[j].CreatedAt)
	})
	return bills, nil
}

// DeleteBill removes a bill from the database
func (b *BoltDB) DeleteBill(_ context.Context, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billsBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
