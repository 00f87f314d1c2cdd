package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/calendar"
	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

var (
	loc = time.FixedZone("BRT", -3*60*60)
	day = datenorm.CivilDate{Year: 2024, Month: time.June, Day: 10}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, time.June, 10, 8, 0, 0, 0, loc)}
}

func appt(id string, h int) model.Appointment {
	return model.Appointment{
		ID:             id,
		CompanyID:      "co",
		ProfessionalID: "P",
		Start:          day.At(h, 0, loc),
		End:            day.At(h+1, 0, loc),
		Status:         model.StatusScheduled,
		Detail:         model.Booking{ClientID: "cl"},
	}
}

func TestStore_ReplaceBumpsVersion(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("co")
	assert.False(t, ok)
	assert.Equal(t, uint64(0), s.Version("co"))

	first := s.Replace("co", []model.Appointment{appt("a", 9)})
	second := s.Replace("co", []model.Appointment{appt("a", 9), appt("b", 10)})
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint64(2), second.Version)

	got, ok := s.Get("co")
	require.True(t, ok)
	assert.Len(t, got.Appointments, 2)
	assert.Equal(t, []string{"co"}, s.Companies())
}

func TestStore_ReplaceCopiesInput(t *testing.T) {
	s := NewStore()
	in := []model.Appointment{appt("a", 9)}
	s.Replace("co", in)
	in[0].ID = "mutated"

	got, _ := s.Get("co")
	assert.Equal(t, "a", got.Appointments[0].ID)
}

func TestStore_SweepKeepsVersionsMonotonic(t *testing.T) {
	clock := newClock()
	s := NewStore(WithClock(clock.Now))

	s.Replace("co", nil)
	s.Replace("co", nil)
	clock.Advance(2 * time.Hour)

	assert.Equal(t, 1, s.Sweep(time.Hour))
	assert.Empty(t, s.Companies())

	again := s.Replace("co", nil)
	assert.Equal(t, uint64(3), again.Version)
}

func TestStore_GetRefreshesIdleTimer(t *testing.T) {
	clock := newClock()
	s := NewStore(WithClock(clock.Now))
	s.Replace("co", nil)

	clock.Advance(50 * time.Minute)
	_, _ = s.Get("co")
	clock.Advance(50 * time.Minute)

	assert.Equal(t, 0, s.Sweep(time.Hour))
}

func TestViews_MemoizesPerVersion(t *testing.T) {
	clock := newClock()
	s := NewStore(WithClock(clock.Now))
	v := NewViews(s, calendar.DefaultOptions())

	_, _, err := v.Days("co", calendar.ViewDay, day)
	assert.ErrorIs(t, err, ErrUnknownCompany)

	s.Replace("co", []model.Appointment{appt("a", 9)})
	days, version, err := v.Days("co", calendar.ViewDay, day)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	require.Len(t, days, 1)
	assert.Len(t, days[0].Timed, 1)

	_, _, err = v.Days("co", calendar.ViewWeek, day)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())

	s.Replace("co", []model.Appointment{appt("a", 9), appt("b", 9)})
	days, version, err = v.Days("co", calendar.ViewDay, day)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.Len(t, days[0].Timed, 2)
	assert.Equal(t, 1, v.Len(), "entries from version 1 are dropped")
}

func TestViews_Sweep(t *testing.T) {
	clock := newClock()
	s := NewStore(WithClock(clock.Now))
	v := NewViews(s, calendar.DefaultOptions())

	s.Replace("co", nil)
	s.Replace("other", nil)
	_, _, _ = v.Days("co", calendar.ViewDay, day)
	_, _, _ = v.Days("other", calendar.ViewDay, day)

	s.Replace("other", nil)
	assert.Equal(t, 1, v.Sweep(time.Hour), "stale version")

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, v.Sweep(time.Hour), "idle")
	assert.Equal(t, 0, v.Len())
}

func TestInterlock(t *testing.T) {
	l := NewInterlock()

	assert.True(t, l.TryBegin("co"))
	assert.False(t, l.TryBegin("co"), "double submit is rejected")
	assert.True(t, l.TryBegin("other"), "tenants are independent")
	assert.True(t, l.Busy("co"))

	l.End("co")
	l.End("co")
	assert.False(t, l.Busy("co"))
	assert.True(t, l.TryBegin("co"))
}

func TestInterlock_Concurrent(t *testing.T) {
	l := NewInterlock()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryBegin("co") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestSweeper(t *testing.T) {
	clock := newClock()
	s := NewStore(WithClock(clock.Now))
	v := NewViews(s, calendar.DefaultOptions())
	l := NewInterlock()
	l.now = clock.Now

	_, err := NewSweeper("not a schedule", time.Hour, s, v, l)
	assert.Error(t, err)

	sw, err := NewSweeper("*/10 * * * *", time.Hour, s, v, l)
	require.NoError(t, err)

	s.Replace("co", nil)
	_, _, _ = v.Days("co", calendar.ViewDay, day)
	require.True(t, l.TryBegin("co"))

	tenants, views, claims := sw.RunOnce()
	assert.Equal(t, 0, tenants+views+claims)

	clock.Advance(2 * time.Hour)
	tenants, views, claims = sw.RunOnce()
	assert.Equal(t, 1, tenants)
	assert.Equal(t, 1, views)
	assert.Equal(t, 1, claims)
}

func TestViews_ProjectsClientBirthdays(t *testing.T) {
	s := NewStore(WithClock(newClock().Now))
	opts := calendar.DefaultOptions()
	opts.Location = loc
	v := NewViews(s, opts)

	clients := []model.Client{{ID: "c1", Name: "Ana", BirthDate: datenorm.CivilDate{Year: 1990, Month: time.June, Day: 10}}}
	snap := s.ReplaceWithClients("co", []model.Appointment{appt("a", 9)}, clients)
	assert.Len(t, snap.Clients, 1)

	days, _, err := v.Days("co", calendar.ViewDay, day)
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Len(t, days[0].AllDay, 1)
	assert.Equal(t, "birthday-c1-2024", days[0].AllDay[0].ID())
	assert.Len(t, days[0].Timed, 1)

	got, _ := s.Get("co")
	assert.Len(t, got.Appointments, 1, "birthdays are not stored as appointments")
}
