package calendar

import "agendacal/internal/model"

// Dedupe drops repeated all-professional blocks and birthdays: such an
// event may arrive once per professional but must render once per day. The
// first occurrence of each (id, start date) wins. Every other event passes
// through, duplicate ids included.
func Dedupe(events []model.CalendarEvent) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	seen := make(map[string]struct{})
	for _, ev := range events {
		if ev.Appointment.AppliesToAll() || ev.Appointment.IsBirthday() {
			key := ev.ID() + "|" + ev.Start().Date().String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, ev)
	}
	return out
}
