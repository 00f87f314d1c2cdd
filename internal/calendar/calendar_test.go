package calendar

import (
	"time"

	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

var (
	loc = time.FixedZone("BRT", -3*60*60)
	day = datenorm.CivilDate{Year: 2024, Month: time.June, Day: 10} // Monday
)

func at(h, m int) datenorm.LocalInstant { return day.At(h, m, loc) }

func appt(id string, start, end datenorm.LocalInstant) model.Appointment {
	return model.Appointment{
		ID:             id,
		ProfessionalID: "P",
		Start:          start,
		End:            end,
		Status:         model.StatusScheduled,
		Detail:         model.Booking{ClientID: "client"},
	}
}

func event(id string, sh, sm, eh, em int) model.CalendarEvent {
	return model.NewCalendarEvent(appt(id, at(sh, sm), at(eh, em)))
}

func allBlock(id string, start, end datenorm.LocalInstant, prof string) model.Appointment {
	return model.Appointment{
		ID:             id,
		ProfessionalID: prof,
		Start:          start,
		End:            end,
		Status:         model.StatusBlock,
		Detail:         model.Block{Scope: model.ScopeAll, Description: "holiday"},
	}
}

func byID(events []model.CalendarEvent) map[string]model.CalendarEvent {
	out := make(map[string]model.CalendarEvent, len(events))
	for _, ev := range events {
		out[ev.ID()] = ev
	}
	return out
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }
