// Package snapshot keeps the latest appointment window of each tenant in
// memory, along with the calendar views derived from it.
package snapshot

import (
	"errors"
	"sort"
	"sync"
	"time"

	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

var ErrUnknownCompany = errors.New("no snapshot for company")

// Snapshot is an immutable view of one tenant's appointments. Callers must
// not modify Appointments.
type Snapshot struct {
	CompanyID    string
	Version      uint64
	Appointments []model.Appointment
	Clients      []model.Client
	LoadedAt     time.Time
}

type entry struct {
	snap       Snapshot
	lastAccess time.Time
}

// Store holds one snapshot per company.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*entry

	// swept remembers evicted versions so a later Replace never reuses one.
	swept map[string]uint64
	now   func() time.Time
}

type StoreOption func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		tenants: make(map[string]*entry),
		swept:   make(map[string]uint64),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Replace installs appts as company's new snapshot and returns it. The
// version increases on every call, also after the tenant was swept.
func (s *Store) Replace(company string, appts []model.Appointment) Snapshot {
	return s.ReplaceWithClients(company, appts, nil)
}

// ReplaceWithClients is Replace with the client records whose birthdays
// the calendar shows.
func (s *Store) ReplaceWithClients(company string, appts []model.Appointment, clients []model.Client) Snapshot {
	cp := make([]model.Appointment, len(appts))
	copy(cp, appts)
	cl := make([]model.Client, len(clients))
	copy(cl, clients)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var version uint64 = 1
	if e, ok := s.tenants[company]; ok {
		version = e.snap.Version + 1
	} else if v, ok := s.swept[company]; ok {
		version = v + 1
		delete(s.swept, company)
	}

	snap := Snapshot{CompanyID: company, Version: version, Appointments: cp, Clients: cl, LoadedAt: now}
	s.tenants[company] = &entry{snap: snap, lastAccess: now}

	appLog.Debug("snapshot: replaced", "company", company, "version", version, "appointments", len(cp), "clients", len(cl))
	return snap
}

// Get returns company's snapshot and marks it as used.
func (s *Store) Get(company string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tenants[company]
	if !ok {
		return Snapshot{}, false
	}
	e.lastAccess = s.now()
	return e.snap, true
}

// Version is the current version of company's snapshot, 0 when absent.
func (s *Store) Version(company string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.tenants[company]; ok {
		return e.snap.Version
	}
	return 0
}

// Companies lists the tenants currently held, sorted.
func (s *Store) Companies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tenants))
	for c := range s.tenants {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Sweep evicts tenants not read or replaced within maxIdle and returns how
// many were dropped.
func (s *Store) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	dropped := 0
	for c, e := range s.tenants {
		if e.lastAccess.Before(cutoff) {
			s.swept[c] = e.snap.Version
			delete(s.tenants, c)
			dropped++
		}
	}
	return dropped
}
