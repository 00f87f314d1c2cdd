package model

import "agendacal/internal/datenorm"

// CalendarEvent is the rendering projection of one appointment occurrence.
// It is rebuilt on every render pass.
type CalendarEvent struct {
	Appointment Appointment
	Day         datenorm.CivilDate

	AllDay bool
	// Continued is set when the event began before its Day and was clipped
	// to Day's midnight.
	Continued bool

	Column       int
	TotalColumns int

	// VisibleHourIndex is the row of the start hour within the day's visible
	// hours, or -1 for all-day events.
	VisibleHourIndex int

	// Geometry in hour rows, plus horizontal split in percent.
	TopRows      float64
	HeightRows   float64
	LeftPercent  float64
	WidthPercent float64
}

// NewCalendarEvent projects a onto its local start day.
func NewCalendarEvent(a Appointment) CalendarEvent {
	return CalendarEvent{
		Appointment:      a,
		Day:              a.Start.Date(),
		VisibleHourIndex: -1,
	}
}

func (e CalendarEvent) Start() datenorm.LocalInstant { return e.Appointment.Start }
func (e CalendarEvent) End() datenorm.LocalInstant   { return e.Appointment.End }
func (e CalendarEvent) ID() string                   { return e.Appointment.ID }
