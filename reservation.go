package remotedisk

import "sync"

// Reservation is a scoped byte-budget token on one disk. It exists purely
// for accounting and metrics; reported remote capacity is unbounded, so
// acquiring one always succeeds.
//
// Release must run on every exit path, normally via defer. It is idempotent.
type Reservation struct {
	disk *Disk

	mu       sync.Mutex
	size     int64
	released bool
}

// Size returns the currently held byte count.
func (r *Reservation) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.size
}

// Update adjusts the disk's reserved byte counter by the delta between the
// old and new size.
func (r *Reservation) Update(newSize int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return
	}

	r.disk.adjustReserved(newSize-r.size, 0)
	r.size = newSize
}

// Release returns the held bytes to the disk's counters and decrements the
// live reservation count. Safe to call more than once.
func (r *Reservation) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return
	}
	r.released = true

	r.disk.adjustReserved(-r.size, -1)
}
