package ui

import (
	"sync"
	"time"

	"github.com/zombor/billed/internal/bill"
)

// attachmentTTL bounds how long an accepted receipt waits for the form to be posted again
const attachmentTTL = 30 * time.Minute

type attachment struct {
	upload  bill.Upload
	expires time.Time
}

// attachments keeps the receipt a user's form accepted between two posts,
// so a redrawn form showing the file name can be sent without choosing it again
type attachments struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]attachment
}

func newAttachments(ttl time.Duration, now func() time.Time) *attachments {
	return &attachments{ttl: ttl, now: now, items: make(map[string]attachment)}
}

// Put keeps u for owner, replacing any earlier receipt
func (a *attachments) Put(owner string, u bill.Upload) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for k, item := range a.items {
		if now.After(item.expires) {
			delete(a.items, k)
		}
	}
	a.items[owner] = attachment{upload: u, expires: now.Add(a.ttl)}
}

// Get returns the receipt kept for owner, if it has not expired
func (a *attachments) Get(owner string) (bill.Upload, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	item, ok := a.items[owner]
	if !ok {
		return bill.Upload{}, false
	}
	if a.now().After(item.expires) {
		delete(a.items, owner)
		return bill.Upload{}, false
	}
	return item.upload, true
}

// Drop forgets the receipt kept for owner
func (a *attachments) Drop(owner string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, owner)
}
