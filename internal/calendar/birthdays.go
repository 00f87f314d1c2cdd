package calendar

import (
	"strconv"
	"time"

	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

// Birthdays projects each client's birth date into every year r touches and
// returns the all-day "__all__" markers that fall inside r. A Feb 29 birth
// date lands on Mar 1 in common years. Clients without a birth date are
// skipped.
func Birthdays(clients []model.Client, r Range, loc *time.Location) []model.Appointment {
	if loc == nil {
		loc = time.Local
	}
	var out []model.Appointment
	for _, c := range clients {
		if c.BirthDate.IsZero() {
			continue
		}
		for year := r.Start.Year; year <= r.End.Year; year++ {
			y, m, d := time.Date(year, c.BirthDate.Month, c.BirthDate.Day, 0, 0, 0, 0, time.UTC).Date()
			day := datenorm.CivilDate{Year: y, Month: m, Day: d}
			if !r.Contains(day) {
				continue
			}

			age := year - c.BirthDate.Year
			if age < 0 {
				age = 0
			}
			start := day.Midnight(loc)
			out = append(out, model.Appointment{
				ID:             "birthday-" + c.ID + "-" + strconv.Itoa(year),
				CompanyID:      c.CompanyID,
				ProfessionalID: model.AllProfessionals,
				Start:          start,
				End:            day.At(23, 59, loc).Add(59 * time.Second),
				Status:         model.StatusScheduled,
				Detail:         model.Birthday{ClientID: c.ID, ClientName: c.Name, Age: age},
			})
		}
	}
	return out
}
