package ics

import (
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"agendacal/internal/model"
)

const (
	productID = "-//agendacal//calendar export//EN"

	propGroup = "X-AGENDACAL-GROUP"
	propOrder = "X-AGENDACAL-ORDER"
	propProf  = "X-AGENDACAL-PROFESSIONAL"
)

// ExportOptions controls calendar-level metadata of an export.
type ExportOptions struct {
	Name     string
	Timezone string
	// Now stamps DTSTAMP; nil means time.Now.
	Now func() time.Time
}

// ExportAppointments renders appts as a VCALENDAR with one VEVENT per
// appointment. Appointments without an id get a random UID.
func ExportAppointments(appts []model.Appointment, opts ExportOptions) string {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	stamp := now().UTC()
	for _, a := range appts {
		uid := a.ID
		if uid == "" {
			uid = uuid.NewString()
		}

		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(a.Start.Time())
		ev.SetEndAt(a.End.Time())
		ev.SetSummary(summary(a))
		if a.Notes != "" {
			ev.SetDescription(a.Notes)
		}
		ev.SetStatus(objectStatus(a.Status))
		ev.SetProperty(ical.ComponentProperty(propProf), a.ProfessionalID)

		if a.IsBlock() {
			ev.SetProperty(ical.ComponentProperty("TRANSP"), "OPAQUE")
		}
		if a.IsRecurring() {
			ev.SetProperty(ical.ComponentProperty(propGroup), a.Recurrence.GroupID)
			ev.SetProperty(ical.ComponentProperty(propOrder), strconv.Itoa(a.Recurrence.Order))
		}
	}
	return cal.Serialize()
}

func summary(a model.Appointment) string {
	if blk, ok := a.AsBlock(); ok {
		if blk.Description != "" {
			return blk.Description
		}
		return "Blocked"
	}
	if b, ok := a.AsBooking(); ok && len(b.ServiceIDs) > 0 {
		return b.ServiceIDs[0]
	}
	return "Appointment"
}

func objectStatus(s model.Status) ical.ObjectStatus {
	switch s {
	case model.StatusCancelled, model.StatusNoShow:
		return ical.ObjectStatusCancelled
	case model.StatusPending:
		return ical.ObjectStatusTentative
	default:
		return ical.ObjectStatusConfirmed
	}
}
