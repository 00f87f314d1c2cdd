package calendar

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/config"
	"agendacal/internal/model"
)

func TestLayout_Scenario(t *testing.T) {
	events := []model.CalendarEvent{
		event("A", 9, 0, 10, 0),
		event("B", 9, 30, 10, 30),
		event("C", 11, 0, 12, 0),
	}

	got := byID(Layout(events))
	assert.Equal(t, 0, got["A"].Column)
	assert.Equal(t, 1, got["B"].Column)
	assert.Equal(t, 2, got["A"].TotalColumns)
	assert.Equal(t, 2, got["B"].TotalColumns)
	assert.Equal(t, 0, got["C"].Column)
	assert.Equal(t, 1, got["C"].TotalColumns)

	perDay := byID(LayoutScoped(events, config.ScopeDay))
	assert.Equal(t, 0, perDay["C"].Column)
	assert.Equal(t, 2, perDay["C"].TotalColumns)
}

func TestLayout_TouchingEventsShareColumn(t *testing.T) {
	got := byID(Layout([]model.CalendarEvent{
		event("A", 9, 0, 10, 0),
		event("B", 10, 0, 11, 0),
	}))
	assert.Equal(t, 0, got["A"].Column)
	assert.Equal(t, 0, got["B"].Column)
	assert.Equal(t, 1, got["B"].TotalColumns)
}

func TestLayout_DisjointUsesOneColumn(t *testing.T) {
	var events []model.CalendarEvent
	for h := 8; h < 20; h += 2 {
		events = append(events, event(fmt.Sprint(h), h, 0, h+1, 0))
	}
	for _, ev := range Layout(events) {
		assert.Equal(t, 0, ev.Column)
		assert.Equal(t, 1, ev.TotalColumns)
	}
}

func TestLayout_StableForEqualStarts(t *testing.T) {
	got := Layout([]model.CalendarEvent{
		event("first", 9, 0, 10, 0),
		event("second", 9, 0, 9, 30),
		event("third", 9, 0, 11, 0),
	})
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].ID())
	assert.Equal(t, 0, got[0].Column)
	assert.Equal(t, 1, got[1].Column)
	assert.Equal(t, 2, got[2].Column)
}

func TestLayout_GroupsByDay(t *testing.T) {
	next := model.NewCalendarEvent(appt("N", day.AddDays(1).At(9, 0, loc), day.AddDays(1).At(10, 0, loc)))
	got := byID(LayoutScoped([]model.CalendarEvent{next, event("A", 9, 0, 10, 0)}, config.ScopeDay))
	assert.Equal(t, 0, got["N"].Column)
	assert.Equal(t, 1, got["N"].TotalColumns)
	assert.Equal(t, 1, got["A"].TotalColumns)
}

func TestLayout_RandomInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(12)
		events := make([]model.CalendarEvent, 0, n)
		for i := 0; i < n; i++ {
			startMin := rng.Intn(12 * 60)
			length := 15 + rng.Intn(180)
			start := at(8, 0).Add(minutes(startMin))
			events = append(events, model.NewCalendarEvent(appt(fmt.Sprint(i), start, start.Add(minutes(length)))))
		}

		for _, scope := range []config.ColumnScope{config.ScopeCluster, config.ScopeDay} {
			laid := LayoutScoped(events, scope)
			require.Len(t, laid, n)

			maxCol := 0
			for i, a := range laid {
				assert.GreaterOrEqual(t, a.Column, 0)
				assert.Less(t, a.Column, a.TotalColumns)
				if a.Column > maxCol {
					maxCol = a.Column
				}
				for j, b := range laid {
					if i == j || a.Column != b.Column {
						continue
					}
					assert.False(t, a.Appointment.Overlaps(b.Start(), b.End()),
						"round %d: %s and %s overlap in column %d", round, a.ID(), b.ID(), a.Column)
				}
			}
			if scope == config.ScopeDay {
				for _, a := range laid {
					assert.Equal(t, maxCol+1, a.TotalColumns)
				}
			}
		}
	}
}

func TestLayout_LeavesOutAllDayEvents(t *testing.T) {
	allDay := model.NewCalendarEvent(allBlock("holiday", at(0, 0), day.AddDays(1).Midnight(loc), "P"))
	allDay.AllDay = true

	got := Layout([]model.CalendarEvent{allDay, event("T", 9, 0, 10, 0)})
	require.Len(t, got, 1)
	assert.Equal(t, "T", got[0].ID())
	assert.Equal(t, 0, got[0].Column)
	assert.Equal(t, 1, got[0].TotalColumns)

	assert.Nil(t, Layout([]model.CalendarEvent{allDay}))
}
