package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agendacal/internal/datenorm"
)

func at(h, m int) datenorm.LocalInstant {
	return datenorm.FromTime(time.Date(2024, 6, 10, h, m, 0, 0, time.UTC))
}

func TestAppointment_Variants(t *testing.T) {
	booking := Appointment{ID: "a", ProfessionalID: "p1", Detail: Booking{ClientID: "c1"}}
	single := Appointment{ID: "b", ProfessionalID: "p1", Detail: Block{Scope: ScopeSingle}}
	scoped := Appointment{ID: "c", ProfessionalID: "p1", Detail: Block{Scope: ScopeAll}}
	sentinel := Appointment{ID: "d", ProfessionalID: AllProfessionals, Detail: Block{Scope: ScopeSingle}}

	assert.False(t, booking.IsBlock())
	_, ok := booking.AsBooking()
	assert.True(t, ok)
	assert.False(t, booking.AppliesToAll())

	assert.True(t, single.IsBlock())
	assert.False(t, single.AppliesToAll())
	assert.True(t, scoped.AppliesToAll())
	assert.True(t, sentinel.AppliesToAll())
}

func TestAppointment_ForProfessional(t *testing.T) {
	own := Appointment{ProfessionalID: "p1", Detail: Booking{}}
	allBlock := Appointment{ProfessionalID: "p2", Detail: Block{Scope: ScopeAll}}
	sentinel := Appointment{ProfessionalID: AllProfessionals, Detail: Block{}}

	assert.True(t, own.ForProfessional("p1"))
	assert.False(t, own.ForProfessional("p2"))
	assert.True(t, own.ForProfessional(AllProfessionals))
	assert.True(t, allBlock.ForProfessional("p1"))
	assert.True(t, sentinel.ForProfessional("p9"))

	malformed := Appointment{ProfessionalID: AllProfessionals, Detail: Booking{}}
	assert.False(t, malformed.ForProfessional("p1"))
	assert.False(t, malformed.ForProfessional(AllProfessionals))
}

func TestAppointment_OverlapsIsHalfOpen(t *testing.T) {
	a := Appointment{Start: at(10, 0), End: at(11, 0)}

	assert.True(t, a.Overlaps(at(10, 30), at(11, 30)))
	assert.True(t, a.Overlaps(at(9, 0), at(12, 0)))
	assert.False(t, a.Overlaps(at(11, 0), at(12, 0)))
	assert.False(t, a.Overlaps(at(9, 0), at(10, 0)))
	assert.Equal(t, time.Hour, a.Duration())

	moved := a.WithTimes(at(14, 0), at(15, 0))
	assert.Equal(t, 14, moved.Start.Hour())
	assert.Equal(t, 10, a.Start.Hour())
}

func TestInterval_Overlaps(t *testing.T) {
	i := Interval{Start: at(9, 0), End: at(10, 0)}
	assert.True(t, i.Overlaps(Interval{Start: at(9, 30), End: at(10, 30)}))
	assert.False(t, i.Overlaps(Interval{Start: at(10, 0), End: at(10, 30)}))
	assert.Equal(t, time.Hour, i.Duration())
}
