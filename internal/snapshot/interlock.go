package snapshot

import (
	"sync"
	"time"
)

// Interlock allows at most one mutation in flight per company. A second
// TryBegin fails until End is called, normally once the tenant's snapshot
// has been refreshed.
type Interlock struct {
	mu       sync.Mutex
	inFlight map[string]time.Time
	now      func() time.Time
}

func NewInterlock() *Interlock {
	return &Interlock{inFlight: make(map[string]time.Time), now: time.Now}
}

// TryBegin claims company's slot and reports whether it was free.
func (l *Interlock) TryBegin(company string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[company]; busy {
		return false
	}
	l.inFlight[company] = l.now()
	return true
}

// End releases company's slot. Releasing a free slot is a no-op.
func (l *Interlock) End(company string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, company)
}

// Busy reports whether company has a claim outstanding.
func (l *Interlock) Busy(company string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.inFlight[company]
	return busy
}

// Sweep releases claims older than maxAge, for clients that never came back.
func (l *Interlock) Sweep(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxAge)
	released := 0
	for c, since := range l.inFlight {
		if since.Before(cutoff) {
			delete(l.inFlight, c)
			released++
		}
	}
	return released
}
