package aggregate

import "sync"

// DateLocks serializes writers per trading date. The orchestrator and
// the recalculation controller share one instance so a manual rebuild
// can never interleave with a batch import on the same date, which is
// what keeps the delete-then-insert replace atomic in practice.
type DateLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDateLocks creates an empty lock table.
func NewDateLocks() *DateLocks {
	return &DateLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for one date key, creating it on first use.
func (d *DateLocks) Lock(dateKey string) {
	d.mu.Lock()
	m, ok := d.locks[dateKey]
	if !ok {
		m = &sync.Mutex{}
		d.locks[dateKey] = m
	}
	d.mu.Unlock()

	m.Lock()
}

// Unlock releases the mutex for one date key.
func (d *DateLocks) Unlock(dateKey string) {
	d.mu.Lock()
	m := d.locks[dateKey]
	d.mu.Unlock()

	if m != nil {
		m.Unlock()
	}
}
