package snapshot

import (
	"sync"
	"time"

	"agendacal/internal/calendar"
	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

type viewKey struct {
	company string
	version uint64
	view    calendar.View
	date    datenorm.CivilDate
}

type viewEntry struct {
	days       []calendar.DayView
	lastAccess time.Time
}

// Views memoizes calendar.BuildDays per company snapshot version. An entry
// is only served while its version is current.
type Views struct {
	store *Store
	opts  calendar.Options
	now   func() time.Time

	mu   sync.RWMutex
	memo map[viewKey]*viewEntry
}

func NewViews(store *Store, opts calendar.Options) *Views {
	return &Views{
		store: store,
		opts:  opts,
		now:   store.now,
		memo:  make(map[viewKey]*viewEntry),
	}
}

// Days returns the rendered days of view around date for company's
// current snapshot, plus the version they were built from.
func (v *Views) Days(company string, view calendar.View, date datenorm.CivilDate) ([]calendar.DayView, uint64, error) {
	snap, ok := v.store.Get(company)
	if !ok {
		return nil, 0, ErrUnknownCompany
	}
	key := viewKey{company: company, version: snap.Version, view: view, date: date}

	v.mu.RLock()
	e, hit := v.memo[key]
	v.mu.RUnlock()
	if hit {
		v.mu.Lock()
		e.lastAccess = v.now()
		v.mu.Unlock()
		return e.days, snap.Version, nil
	}

	appts := snap.Appointments
	if len(snap.Clients) > 0 {
		r := calendar.RangeFor(view, date, v.opts.WeekStart)
		appts = append(append([]model.Appointment(nil), appts...), calendar.Birthdays(snap.Clients, r, v.opts.Location)...)
	}
	days := calendar.BuildDays(view, date, appts, v.opts)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropOlder(company, snap.Version)
	v.memo[key] = &viewEntry{days: days, lastAccess: v.now()}
	return days, snap.Version, nil
}

// dropOlder removes company entries built from earlier versions. Callers
// hold mu.
func (v *Views) dropOlder(company string, version uint64) {
	for k := range v.memo {
		if k.company == company && k.version < version {
			delete(v.memo, k)
		}
	}
}

// Len is the number of memoized views.
func (v *Views) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.memo)
}

// Sweep drops entries that are idle for maxIdle or no longer match their
// company's current version.
func (v *Views) Sweep(maxIdle time.Duration) int {
	cutoff := v.now().Add(-maxIdle)

	v.mu.Lock()
	defer v.mu.Unlock()
	dropped := 0
	for k, e := range v.memo {
		if e.lastAccess.Before(cutoff) || v.store.Version(k.company) != k.version {
			delete(v.memo, k)
			dropped++
		}
	}
	return dropped
}
