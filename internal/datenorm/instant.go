package datenorm

import (
	"encoding/json"
	"fmt"
	"time"
)

// LocalInstant is a wall-clock instant in the tenant's location. Engine
// packages only accept this type; values are produced by a Normalizer,
// FromTime or CivilDate.At.
type LocalInstant struct {
	t time.Time
}

// FromTime wraps t without changing its location, so the value's own
// wall-clock components are preserved.
func FromTime(t time.Time) LocalInstant {
	return LocalInstant{t: t}
}

func (l LocalInstant) Time() time.Time          { return l.t }
func (l LocalInstant) IsZero() bool             { return l.t.IsZero() }
func (l LocalInstant) Location() *time.Location { return l.t.Location() }
func (l LocalInstant) Hour() int                { return l.t.Hour() }
func (l LocalInstant) Minute() int              { return l.t.Minute() }
func (l LocalInstant) Second() int              { return l.t.Second() }

func (l LocalInstant) Before(o LocalInstant) bool { return l.t.Before(o.t) }
func (l LocalInstant) After(o LocalInstant) bool  { return l.t.After(o.t) }
func (l LocalInstant) Equal(o LocalInstant) bool  { return l.t.Equal(o.t) }

// Compare returns -1, 0 or +1.
func (l LocalInstant) Compare(o LocalInstant) int { return l.t.Compare(o.t) }

func (l LocalInstant) Sub(o LocalInstant) time.Duration { return l.t.Sub(o.t) }

func (l LocalInstant) Add(d time.Duration) LocalInstant { return LocalInstant{t: l.t.Add(d)} }

// AddDate follows time.Time.AddDate, which keeps the wall clock across DST
// transitions.
func (l LocalInstant) AddDate(years, months, days int) LocalInstant {
	return LocalInstant{t: l.t.AddDate(years, months, days)}
}

// Date is the local calendar date of the instant.
func (l LocalInstant) Date() CivilDate {
	y, m, d := l.t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

// IsMidnight reports whether the instant sits exactly on 00:00:00 local.
func (l LocalInstant) IsMidnight() bool {
	return l.t.Hour() == 0 && l.t.Minute() == 0 && l.t.Second() == 0 && l.t.Nanosecond() == 0
}

func (l LocalInstant) Format(layout string) string { return l.t.Format(layout) }

func (l LocalInstant) String() string { return l.t.Format(time.RFC3339) }

func (l LocalInstant) MarshalJSON() ([]byte, error) {
	if l.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(l.t.Format(time.RFC3339Nano))
}

// CivilDate is a calendar date without time-of-day or location.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

const civilLayout = "2006-01-02"

// ParseCivilDate parses YYYY-MM-DD.
func ParseCivilDate(s string) (CivilDate, error) {
	t, err := time.Parse(civilLayout, s)
	if err != nil {
		return CivilDate{}, fmt.Errorf("datenorm: invalid date %q: %w", s, err)
	}
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}, nil
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d CivilDate) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// At returns hour:minute on this date in loc.
func (d CivilDate) At(hour, minute int, loc *time.Location) LocalInstant {
	if loc == nil {
		loc = time.Local
	}
	return LocalInstant{t: time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)}
}

// Midnight is local 00:00 of the date.
func (d CivilDate) Midnight(loc *time.Location) LocalInstant {
	return d.At(0, 0, loc)
}

// AddDays normalizes overflow the way time.Date does.
func (d CivilDate) AddDays(n int) CivilDate {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	y, m, dd := t.Date()
	return CivilDate{Year: y, Month: m, Day: dd}
}

// AddMonths moves by n months. Day overflow rolls into the following month
// like time.Date; callers that need clamping do it themselves.
func (d CivilDate) AddMonths(n int) CivilDate {
	t := time.Date(d.Year, d.Month+time.Month(n), d.Day, 0, 0, 0, 0, time.UTC)
	y, m, dd := t.Date()
	return CivilDate{Year: y, Month: m, Day: dd}
}

func (d CivilDate) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

func (d CivilDate) Compare(o CivilDate) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d CivilDate) Before(o CivilDate) bool { return d.Compare(o) < 0 }
func (d CivilDate) After(o CivilDate) bool  { return d.Compare(o) > 0 }

func (d CivilDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
