package calendar

import "agendacal/internal/model"

const (
	DefaultFirstHour = 8
	DefaultLastHour  = 22
)

// VisibleHours returns the hour rows for a day over the default 8..22
// baseline.
func VisibleHours(events []model.CalendarEvent) []int {
	return VisibleHoursFrom(DefaultFirstHour, DefaultLastHour, events)
}

// VisibleHoursFrom extends the first..last baseline with every hour touched
// by a timed event, start hour through end hour inclusive, wrapping past
// midnight when the end hour is before the start hour. Late hours come
// first, then early hours, then the baseline, each ascending.
func VisibleHoursFrom(first, last int, events []model.CalendarEvent) []int {
	var seen [24]bool
	for h := first; h <= last; h++ {
		if h >= 0 && h < 24 {
			seen[h] = true
		}
	}

	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		startH, endH := ev.Start().Hour(), ev.End().Hour()
		if endH >= startH {
			for h := startH; h <= endH; h++ {
				seen[h] = true
			}
			continue
		}
		for h := startH; h < 24; h++ {
			seen[h] = true
		}
		for h := 0; h <= endH; h++ {
			seen[h] = true
		}
	}

	out := make([]int, 0, 24)
	for h := last + 1; h < 24; h++ {
		if seen[h] {
			out = append(out, h)
		}
	}
	for h := 0; h < first && h < 24; h++ {
		if seen[h] {
			out = append(out, h)
		}
	}
	for h := first; h <= last; h++ {
		if h >= 0 && h < 24 && seen[h] {
			out = append(out, h)
		}
	}
	return out
}

// HourIndex is the row of hour h in hours, or -1.
func HourIndex(hours []int, h int) int {
	for i, v := range hours {
		if v == h {
			return i
		}
	}
	return -1
}
