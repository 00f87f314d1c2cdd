package model

import (
	"time"

	"agendacal/internal/datenorm"
)

// AllProfessionals is the professional id carried by blocks that make every
// professional of the tenant unavailable.
const AllProfessionals = "__all__"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
	StatusPending   Status = "pending"
	StatusBlock     Status = "block"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{
	StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled,
	StatusNoShow, StatusPending, StatusBlock,
}

type BlockScope string

const (
	ScopeSingle BlockScope = "single"
	ScopeAll    BlockScope = "all"
)

// Detail is the variant part of an Appointment: exactly one of Booking,
// Block or Birthday.
type Detail interface {
	isDetail()
}

// Booking holds the client-facing fields of a regular appointment.
type Booking struct {
	ClientID          string
	ServiceIDs        []string // ordered; first entry is the primary service
	PriceCents        int64
	CommissionPercent float64
	PaidCents         *int64
}

// Block marks the interval as unavailable.
type Block struct {
	Scope       BlockScope
	Description string
}

// Birthday is a display-only all-day marker projected from a client's
// birth date. It never occupies a slot.
type Birthday struct {
	ClientID   string
	ClientName string
	// Age is the age reached in the projected year, 0 when unknown.
	Age int
}

func (Booking) isDetail()  {}
func (Block) isDetail()    {}
func (Birthday) isDetail() {}

// Client is the part of a client record the calendar reads.
type Client struct {
	ID        string
	CompanyID string
	Name      string
	BirthDate datenorm.CivilDate
}

// Recurrence links an instance to the series that generated it.
type Recurrence struct {
	GroupID            string
	Frequency          Frequency
	CustomIntervalDays int
	EndsAt             datenorm.LocalInstant
	OriginalStart      datenorm.LocalInstant
	Order              int
}

// Appointment is one stored occurrence for a tenant. Values are treated as
// immutable snapshots; helpers return modified copies.
type Appointment struct {
	ID             string
	CompanyID      string
	ProfessionalID string

	Start datenorm.LocalInstant
	End   datenorm.LocalInstant

	Status Status
	Detail Detail

	Recurrence *Recurrence

	// ShouldNotify is passed through to the notification collaborator untouched.
	ShouldNotify bool

	Notes     string
	CreatedBy string
}

// Duration is End - Start.
func (a Appointment) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// AsBooking returns the booking detail when the appointment is one.
func (a Appointment) AsBooking() (Booking, bool) {
	b, ok := a.Detail.(Booking)
	return b, ok
}

// AsBlock returns the block detail when the appointment is one.
func (a Appointment) AsBlock() (Block, bool) {
	b, ok := a.Detail.(Block)
	return b, ok
}

func (a Appointment) IsBlock() bool {
	_, ok := a.Detail.(Block)
	return ok
}

func (a Appointment) IsBirthday() bool {
	_, ok := a.Detail.(Birthday)
	return ok
}

// AppliesToAll reports whether a block covers every professional.
func (a Appointment) AppliesToAll() bool {
	b, ok := a.AsBlock()
	if !ok {
		return false
	}
	return b.Scope == ScopeAll || a.ProfessionalID == AllProfessionals
}

// IsRecurring reports membership in a recurrence group.
func (a Appointment) IsRecurring() bool {
	return a.Recurrence != nil && a.Recurrence.GroupID != ""
}

// Overlaps uses half-open intervals: touching endpoints do not overlap.
func (a Appointment) Overlaps(start, end datenorm.LocalInstant) bool {
	return start.Before(a.End) && end.After(a.Start)
}

// ForProfessional reports whether the appointment occupies professionalID's
// agenda. All-professional blocks and the "__all__" candidate match
// everything. A booking stored under "__all__" is malformed and matches
// nobody.
func (a Appointment) ForProfessional(professionalID string) bool {
	if a.IsBirthday() || (a.ProfessionalID == AllProfessionals && !a.IsBlock()) {
		return false
	}
	if a.ProfessionalID == professionalID || professionalID == AllProfessionals {
		return true
	}
	return a.AppliesToAll()
}

// WithTimes returns a copy moved to [start, end).
func (a Appointment) WithTimes(start, end datenorm.LocalInstant) Appointment {
	cp := a
	cp.Start = start
	cp.End = end
	return cp
}

// Interval is a bare half-open time range.
type Interval struct {
	Start datenorm.LocalInstant
	End   datenorm.LocalInstant
}

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Overlaps uses half-open semantics.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}
