package slots

import (
	"sort"
	"strconv"
	"time"

	"agendacal/internal/config"
	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

// Grid is the fixed set of candidate start times for one day: every Stride
// step inside each hour from FirstHour to LastHour inclusive.
type Grid struct {
	FirstHour int
	LastHour  int
	Stride    time.Duration
}

// DefaultGrid is 08:00 .. 22:30 every 30 minutes.
func DefaultGrid() Grid {
	return Grid{FirstHour: 8, LastHour: 22, Stride: 30 * time.Minute}
}

// GridFromConfig converts the config section into a Grid.
func GridFromConfig(c config.GridConfig) Grid {
	g := Grid{FirstHour: c.FirstHour, LastHour: c.LastHour, Stride: time.Duration(c.StrideMinutes) * time.Minute}
	if g.Stride <= 0 || g.FirstHour > g.LastHour {
		return DefaultGrid()
	}
	return g
}

// Slot is one grid start with its occupancy.
type Slot struct {
	Start    datenorm.LocalInstant `json:"start"`
	Label    string                `json:"label"`
	Occupied bool                  `json:"occupied"`
}

// SlotSet is a set of slot starts keyed by wall-clock "15:04".
type SlotSet struct {
	starts map[string]datenorm.LocalInstant
}

func newSlotSet() SlotSet {
	return SlotSet{starts: make(map[string]datenorm.LocalInstant)}
}

func (s SlotSet) add(start datenorm.LocalInstant) {
	s.starts[start.Format(clockLayout)] = start
}

// Has reports whether start is in the set.
func (s SlotSet) Has(start datenorm.LocalInstant) bool {
	_, ok := s.starts[start.Format(clockLayout)]
	return ok
}

// hasClock looks up a "15:04" clock string.
func (s SlotSet) hasClock(clock string) bool {
	_, ok := s.starts[clock]
	return ok
}

func (s SlotSet) Len() int { return len(s.starts) }

// Starts returns the members in chronological order.
func (s SlotSet) Starts() []datenorm.LocalInstant {
	out := make([]datenorm.LocalInstant, 0, len(s.starts))
	for _, v := range s.starts {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

const clockLayout = "15:04"

// Checker computes slot occupancy for one tenant location.
type Checker struct {
	grid Grid
	loc  *time.Location
}

// NewChecker returns a Checker over grid in loc (time.Local when nil).
func NewChecker(grid Grid, loc *time.Location) *Checker {
	if loc == nil {
		loc = time.Local
	}
	if grid.Stride <= 0 {
		grid = DefaultGrid()
	}
	return &Checker{grid: grid, loc: loc}
}

// Slots lists every candidate start on day.
func (c *Checker) Slots(day datenorm.CivilDate) []datenorm.LocalInstant {
	var out []datenorm.LocalInstant
	for h := c.grid.FirstHour; h <= c.grid.LastHour; h++ {
		hourStart := day.At(h, 0, c.loc)
		for off := time.Duration(0); off < time.Hour; off += c.grid.Stride {
			out = append(out, hourStart.Add(off))
		}
	}
	return out
}

// OccupiedSlots returns the starts s for which [s, s+duration) overlaps a
// non-cancelled appointment of professionalID (blocks included). A
// non-positive duration or empty professional means nothing is known yet,
// so the set is empty.
func (c *Checker) OccupiedSlots(day datenorm.CivilDate, professionalID string, duration time.Duration, appts []model.Appointment) SlotSet {
	set := newSlotSet()
	if duration <= 0 || professionalID == "" {
		return set
	}

	relevant := make([]model.Appointment, 0, len(appts))
	for _, a := range appts {
		if occupies(a, professionalID) {
			relevant = append(relevant, a)
		}
	}
	if len(relevant) == 0 {
		return set
	}

	for _, s := range c.Slots(day) {
		end := s.Add(duration)
		for _, a := range relevant {
			if a.Overlaps(s, end) {
				set.add(s)
				break
			}
		}
	}
	return set
}

// Availability is the full grid for day with occupied flags.
func (c *Checker) Availability(day datenorm.CivilDate, professionalID string, duration time.Duration, appts []model.Appointment) []Slot {
	occupied := c.OccupiedSlots(day, professionalID, duration, appts)
	starts := c.Slots(day)
	out := make([]Slot, 0, len(starts))
	for _, s := range starts {
		out = append(out, Slot{Start: s, Label: Label(s), Occupied: occupied.Has(s)})
	}
	return out
}

// FreeSlots returns the grid starts not in OccupiedSlots.
func (c *Checker) FreeSlots(day datenorm.CivilDate, professionalID string, duration time.Duration, appts []model.Appointment) []datenorm.LocalInstant {
	occupied := c.OccupiedSlots(day, professionalID, duration, appts)
	var out []datenorm.LocalInstant
	for _, s := range c.Slots(day) {
		if !occupied.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// CanBook reports whether candidate is free for professionalID. ignoreID
// excludes the appointment being rescheduled. Empty or inverted intervals
// are never bookable.
func CanBook(candidate model.Interval, professionalID string, appts []model.Appointment, ignoreID string) bool {
	if !candidate.Start.Before(candidate.End) {
		return false
	}
	return len(Conflicts(candidate, professionalID, appts, ignoreID)) == 0
}

// Conflicts returns the appointments that make candidate unbookable, in
// input order.
func Conflicts(candidate model.Interval, professionalID string, appts []model.Appointment, ignoreID string) []model.Appointment {
	var out []model.Appointment
	for _, a := range appts {
		if ignoreID != "" && a.ID == ignoreID {
			continue
		}
		if !occupies(a, professionalID) {
			continue
		}
		if a.Overlaps(candidate.Start, candidate.End) {
			out = append(out, a)
		}
	}
	return out
}

func occupies(a model.Appointment, professionalID string) bool {
	if a.Status == model.StatusCancelled {
		return false
	}
	if !a.Start.Before(a.End) {
		return false
	}
	return a.ForProfessional(professionalID)
}

// Label renders 8h, 8h30 the way the booking form shows slots.
func Label(s datenorm.LocalInstant) string {
	h := strconv.Itoa(s.Hour()) + "h"
	if s.Minute() == 0 {
		return h
	}
	return h + s.Format("04")
}
