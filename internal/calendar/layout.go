package calendar

import (
	"sort"

	"agendacal/internal/config"
	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

// Layout assigns columns to timed events so that no two overlapping events
// of the same day share one. TotalColumns is counted per overlap cluster.
func Layout(events []model.CalendarEvent) []model.CalendarEvent {
	return LayoutScoped(events, config.ScopeCluster)
}

// LayoutScoped is Layout with an explicit column scope. With ScopeDay every
// event of a day reports the number of columns opened on that day.
//
// Events are stable-sorted by start and placed greedily in the first column
// whose events all end before it starts or start after it ends. The result
// is ordered by day, then start. All-day events are left out.
func LayoutScoped(events []model.CalendarEvent, scope config.ColumnScope) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if !ev.AllDay {
			out = append(out, ev)
		}
	}
	if len(out) == 0 {
		return nil
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Day.Compare(out[j].Day); c != 0 {
			return c < 0
		}
		return out[i].Start().Before(out[j].Start())
	})

	for lo := 0; lo < len(out); {
		hi := lo
		for hi < len(out) && out[hi].Day == out[lo].Day {
			hi++
		}
		layoutDay(out[lo:hi], scope)
		lo = hi
	}
	return out
}

// layoutDay works in place on one day's events, already sorted by start.
func layoutDay(day []model.CalendarEvent, scope config.ColumnScope) {
	var (
		columns      [][]int // indices into day
		clusterStart int
		clusterEnd   datenorm.LocalInstant
	)

	closeCluster := func(upTo int) {
		for i := clusterStart; i < upTo; i++ {
			day[i].TotalColumns = len(columns)
		}
	}

	for i := range day {
		ev := &day[i]
		if scope != config.ScopeDay && i > clusterStart && !ev.Start().Before(clusterEnd) {
			closeCluster(i)
			columns = nil
			clusterStart = i
		}

		placed := false
		for c, members := range columns {
			if fits(*ev, day, members) {
				columns[c] = append(members, i)
				ev.Column = c
				placed = true
				break
			}
		}
		if !placed {
			ev.Column = len(columns)
			columns = append(columns, []int{i})
		}

		if i == clusterStart || ev.End().After(clusterEnd) {
			clusterEnd = ev.End()
		}
	}
	closeCluster(len(day))
}

func fits(ev model.CalendarEvent, day []model.CalendarEvent, members []int) bool {
	for _, m := range members {
		o := day[m]
		if ev.End().After(o.Start()) && ev.Start().Before(o.End()) {
			return false
		}
	}
	return true
}
