// Package mempool maintains the queue of payloads waiting to be mined.
package mempool

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry represents a payload waiting in the mempool.
type Entry struct {
	ID       string    `json:"id"`
	Data     []byte    `json:"data"`
	Received time.Time `json:"received"`
}

// Mempool represents a first in, first out queue of payloads. Payloads are
// mined in the order they were received.
type Mempool struct {
	mu      sync.RWMutex
	entries []Entry
}

// New constructs a new, empty mempool.
func New() *Mempool {
	return &Mempool{}
}

// Count returns the current number of payloads in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.entries)
}

// Add queues a copy of the payload and returns the id it was given.
func (mp *Mempool) Add(data []byte) string {
	entry := Entry{
		ID:       uuid.NewString(),
		Data:     append([]byte{}, data...),
		Received: time.Now().UTC(),
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.entries = append(mp.entries, entry)

	return entry.ID
}

// Oldest returns the payload that has been waiting the longest. It stays in
// the pool until it is deleted.
func (mp *Mempool) Oldest() (Entry, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if len(mp.entries) == 0 {
		return Entry{}, false
	}

	return mp.entries[0], true
}

// Delete removes the payload with the specified id. It reports whether
// the payload was found.
func (mp *Mempool) Delete(id string) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for i, entry := range mp.entries {
		if entry.ID == id {
			mp.entries = append(mp.entries[:i:i], mp.entries[i+1:]...)
			return true
		}
	}

	return false
}

// Truncate clears all the payloads from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.entries = nil
}

// Copy returns the payloads in the order they will be mined.
func (mp *Mempool) Copy() []Entry {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return append([]Entry(nil), mp.entries...)
}
