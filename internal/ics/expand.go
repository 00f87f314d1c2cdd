package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"agendacal/internal/datenorm"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 400

// BlockOptions controls how parsed VEVENTs become block appointments.
type BlockOptions struct {
	CompanyID string
	CreatedBy string

	// RangeStart and RangeEnd bound the generated occurrences inclusively.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps RRULE expansion per UID. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// BlockResult is the outcome of ToBlocks.
type BlockResult struct {
	Blocks []model.Appointment
	// TruncatedEvents lists UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// ToBlocks expands events into block appointments inside the range, applying
// RRULE, EXDATE and RECURRENCE-ID overrides. All-day events become blocks
// from local midnight to the next midnight. Blocks are sorted by start.
func ToBlocks(events []ParsedEvent, opts BlockOptions) (BlockResult, error) {
	var result BlockResult

	if opts.RangeEnd.Before(opts.RangeStart) {
		return result, errors.New("ics: range end is before range start")
	}
	if opts.MaxOccurrencesPerEvent <= 0 {
		opts.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], opts)
			if hitCap {
				truncated = true
			}
			result.Blocks = append(result.Blocks, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("ics: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", opts.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(result.Blocks, func(i, j int) bool {
		return result.Blocks[i].Start.Before(result.Blocks[j].Start)
	})
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, opts BlockOptions) ([]model.Appointment, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, opts), false
	}
	return expandRecurringEvent(ev, overrides, opts)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, opts BlockOptions) []model.Appointment {
	start, end := ev.Start, ev.End
	if o, ok := findOverrideForStart(overrides, start); ok {
		start, end, ev = o.Start, o.End, o
	}
	if !timeRangesOverlap(start, end, opts.RangeStart, opts.RangeEnd) {
		return nil
	}
	return []model.Appointment{makeBlock(ev, start, end, false, opts)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, opts BlockOptions) ([]model.Appointment, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Events that started before the range may still reach into it.
	duration := ev.End.Sub(ev.Start)
	rangeStart := opts.RangeStart.Add(-duration).In(ev.Start.Location())
	rangeEnd := opts.RangeEnd.In(ev.Start.Location())

	times := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(times) > opts.MaxOccurrencesPerEvent {
		times = times[:opts.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Appointment, 0, len(times))
	for _, occStart := range times {
		var occEnd time.Time
		if ev.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.AddDate(0, 0, 1)
		} else {
			occEnd = occStart.Add(duration)
		}

		base := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occStart, occEnd, base = o.Start, o.End, o
		}
		if !timeRangesOverlap(occStart, occEnd, opts.RangeStart, opts.RangeEnd) {
			continue
		}
		out = append(out, makeBlock(base, occStart, occEnd, true, opts))
	}
	return out, hitCap
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeBlock converts one occurrence into a block appointment in the source
// location. Recurring occurrences get a per-instance id.
func makeBlock(ev ParsedEvent, start, end time.Time, perInstance bool, opts BlockOptions) model.Appointment {
	loc := ev.Source.location()
	startLocal := datenorm.FromTime(start.In(loc))
	endLocal := datenorm.FromTime(end.In(loc))

	id := ev.UID
	if perInstance {
		id = ev.UID + "@" + startLocal.Format("20060102T150405")
	}

	prof := ev.Source.ProfessionalID
	scope := model.ScopeSingle
	if prof == "" || prof == model.AllProfessionals {
		prof = model.AllProfessionals
		scope = model.ScopeAll
	}

	desc := ev.Summary
	if desc == "" {
		desc = ev.Description
	}

	return model.Appointment{
		ID:             id,
		CompanyID:      opts.CompanyID,
		ProfessionalID: prof,
		Start:          startLocal,
		End:            endLocal,
		Status:         model.StatusBlock,
		Detail:         model.Block{Scope: scope, Description: desc},
		Notes:          ev.Description,
		CreatedBy:      opts.CreatedBy,
	}
}

// timeRangesOverlap tests [aStart, aEnd) against the inclusive window
// [bStart, bEnd]. Zero-length occurrences count when they fall inside.
func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aStart.After(bEnd) {
		return false
	}
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart)
	}
	return aEnd.After(bStart)
}
