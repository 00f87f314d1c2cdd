package calendar

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"agendacal/internal/config"
	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

var ErrUnknownView = errors.New("unknown calendar view")

// ParseView accepts day, week or month; empty means day.
func ParseView(s string) (View, error) {
	switch View(s) {
	case "":
		return ViewDay, nil
	case ViewDay, ViewWeek, ViewMonth:
		return View(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Options controls how a view is built.
type Options struct {
	WeekStart      time.Weekday
	FirstHour      int
	LastHour       int
	AllDayBoundary config.AllDayBoundary
	ColumnScope    config.ColumnScope
	// Location places projected birthdays; nil means time.Local.
	Location *time.Location
}

func DefaultOptions() Options {
	return Options{
		WeekStart:      time.Sunday,
		FirstHour:      DefaultFirstHour,
		LastHour:       DefaultLastHour,
		AllDayBoundary: config.BoundaryEither,
		ColumnScope:    config.ScopeCluster,
		Location:       time.Local,
	}
}

// OptionsFromConfig reads the calendar-related settings of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		WeekStart:      cfg.WeekStartDay(),
		FirstHour:      cfg.Visible.FirstHour,
		LastHour:       cfg.Visible.LastHour,
		AllDayBoundary: cfg.AllDayBoundary,
		ColumnScope:    cfg.ColumnScope,
		Location:       cfg.Location(),
	}
}

// Range is an inclusive span of calendar dates.
type Range struct {
	Start datenorm.CivilDate `json:"start"`
	End   datenorm.CivilDate `json:"end"`
}

func (r Range) Contains(d datenorm.CivilDate) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days lists every date of the range in order.
func (r Range) Days() []datenorm.CivilDate {
	var out []datenorm.CivilDate
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// RangeFor is the span displayed by view around date. Month ranges cover
// whole weeks, so they include the adjacent days of the first and last week.
func RangeFor(view View, date datenorm.CivilDate, weekStart time.Weekday) Range {
	switch view {
	case ViewWeek:
		start := startOfWeek(date, weekStart)
		return Range{Start: start, End: start.AddDays(6)}
	case ViewMonth:
		first := datenorm.CivilDate{Year: date.Year, Month: date.Month, Day: 1}
		last := datenorm.CivilDate{Year: date.Year, Month: date.Month + 1, Day: 1}.AddDays(-1)
		return Range{
			Start: startOfWeek(first, weekStart),
			End:   startOfWeek(last, weekStart).AddDays(6),
		}
	default:
		return Range{Start: date, End: date}
	}
}

func startOfWeek(d datenorm.CivilDate, weekStart time.Weekday) datenorm.CivilDate {
	back := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDays(-back)
}

// Navigate moves date by step views. Month steps clamp the day to the
// target month's length.
func Navigate(view View, date datenorm.CivilDate, step int) datenorm.CivilDate {
	switch view {
	case ViewWeek:
		return date.AddDays(7 * step)
	case ViewMonth:
		target := datenorm.CivilDate{Year: date.Year, Month: date.Month, Day: 1}.AddMonths(step)
		lastDay := target.AddMonths(1).AddDays(-1).Day
		if date.Day < lastDay {
			lastDay = date.Day
		}
		target.Day = lastDay
		return target
	default:
		return date.AddDays(step)
	}
}

// Filter keeps the events view would show for r: the day view keeps events
// starting on the day, the week view keeps events overlapping the week and
// the month view keeps events starting inside the grid.
func Filter(view View, r Range, events []model.CalendarEvent) []model.CalendarEvent {
	var out []model.CalendarEvent
	for _, ev := range events {
		if visibleIn(view, r, ev) {
			out = append(out, ev)
		}
	}
	return out
}

func visibleIn(view View, r Range, ev model.CalendarEvent) bool {
	startDay := ev.Start().Date()
	switch view {
	case ViewWeek:
		loc := ev.Start().Location()
		return ev.Start().Before(r.End.AddDays(1).Midnight(loc)) && ev.End().After(r.Start.Midnight(loc))
	case ViewMonth:
		return r.Contains(startDay)
	default:
		return startDay == r.Start
	}
}

// DayView is everything needed to render one day column.
type DayView struct {
	Date   datenorm.CivilDate    `json:"date"`
	AllDay []model.CalendarEvent `json:"all_day"`
	Timed  []model.CalendarEvent `json:"timed"`
	Hours  []int                 `json:"hours"`
}

// BuildDays renders view around date: duplicate all-professional blocks
// are dropped, events are grouped by local start date, all-day events go to
// their own lane and the rest get visible hours, columns and geometry. An
// event that started before the range is shown from the range's first day.
// Every date of the view's range gets a DayView, empty or not.
func BuildDays(view View, date datenorm.CivilDate, appts []model.Appointment, opts Options) []DayView {
	r := RangeFor(view, date, opts.WeekStart)

	events := make([]model.CalendarEvent, 0, len(appts))
	for _, a := range appts {
		events = append(events, model.NewCalendarEvent(a))
	}
	events = Filter(view, r, Dedupe(events))
	for i := range events {
		if events[i].Day.Before(r.Start) {
			clipToDay(&events[i], r.Start)
		}
	}

	byDay := make(map[datenorm.CivilDate][]model.CalendarEvent)
	for _, ev := range events {
		byDay[ev.Day] = append(byDay[ev.Day], ev)
	}

	days := r.Days()
	out := make([]DayView, 0, len(days))
	for _, d := range days {
		out = append(out, buildDay(d, byDay[d], opts))
	}
	return out
}

// clipToDay moves the visible start of an event that began before d to
// d's midnight, so it renders on d instead of a day outside the range.
func clipToDay(ev *model.CalendarEvent, d datenorm.CivilDate) {
	ev.Appointment = ev.Appointment.WithTimes(d.Midnight(ev.Start().Location()), ev.End())
	ev.Day = d
	ev.Continued = true
}

func buildDay(d datenorm.CivilDate, events []model.CalendarEvent, opts Options) DayView {
	dv := DayView{Date: d}

	var timed []model.CalendarEvent
	for _, ev := range events {
		if IsAllDay(ev, opts.AllDayBoundary) {
			ev.AllDay = true
			ev.VisibleHourIndex = -1
			dv.AllDay = append(dv.AllDay, ev)
			continue
		}
		timed = append(timed, ev)
	}
	sort.SliceStable(dv.AllDay, func(i, j int) bool {
		return dv.AllDay[i].Start().Before(dv.AllDay[j].Start())
	})

	dv.Hours = VisibleHoursFrom(opts.FirstHour, opts.LastHour, timed)
	dv.Timed = LayoutScoped(timed, opts.ColumnScope)
	for i := range dv.Timed {
		place(&dv.Timed[i], dv.Hours)
	}
	return dv
}

// place fills row geometry from the visible hours and the horizontal split
// from the column assignment.
func place(ev *model.CalendarEvent, hours []int) {
	ev.VisibleHourIndex = HourIndex(hours, ev.Start().Hour())
	if ev.VisibleHourIndex >= 0 {
		ev.TopRows = float64(ev.VisibleHourIndex) + float64(ev.Start().Minute())/60
	}
	ev.HeightRows = ev.Appointment.Duration().Hours()

	total := ev.TotalColumns
	if total < 1 {
		total = 1
	}
	ev.WidthPercent = 100 / float64(total)
	ev.LeftPercent = float64(ev.Column) * ev.WidthPercent
}
