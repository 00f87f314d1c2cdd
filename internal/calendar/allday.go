package calendar

import (
	"agendacal/internal/config"
	"agendacal/internal/model"
)

// IsAllDay reports whether ev starts at local midnight and runs to the end
// of its start day under the given boundary convention:
//
//	end_of_day     ends at 23:59 or later on the start day
//	next_midnight  ends at 00:00 on a later day
//	either         accepts both
//
// Birthdays are all-day under every convention.
func IsAllDay(ev model.CalendarEvent, boundary config.AllDayBoundary) bool {
	if ev.Appointment.IsBirthday() {
		return true
	}
	start, end := ev.Start(), ev.End()
	if start.IsZero() || end.IsZero() || !start.IsMidnight() {
		return false
	}

	endOfDay := end.Date() == start.Date() && end.Hour() == 23 && end.Minute() >= 59
	nextMidnight := end.IsMidnight() && end.Date().After(start.Date())

	switch boundary {
	case config.BoundaryEndOfDay:
		return endOfDay
	case config.BoundaryNextMidnight:
		return nextMidnight
	default:
		return endOfDay || nextMidnight
	}
}
