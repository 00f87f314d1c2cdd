package recurrence

import (
	"sort"

	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

// TailRewrite is the plan for editing a series from one instance onwards:
// delete DeleteIDs, then write Create as one batch.
type TailRewrite struct {
	GroupID   string
	DeleteIDs []string
	Create    []model.Appointment

	// NotifyDeleteID is the single deleted instance whose removal should be
	// announced, empty when nothing should be.
	NotifyDeleteID string
}

// PlanTailRewrite replaces every instance of template's group starting at
// or after from. rule.OriginalStart is where the new tail begins; the
// replacement keeps the group id and the group's original start, and its
// order continues from the first removed instance.
func (e *Expander) PlanTailRewrite(existing []model.Appointment, from datenorm.LocalInstant, rule model.RecurrenceRule, template model.Appointment) (TailRewrite, error) {
	if !template.IsRecurring() {
		return TailRewrite{}, invalid("template", ErrNotRecurring)
	}
	if err := checkTemplate(template); err != nil {
		return TailRewrite{}, err
	}
	if err := e.Validate(rule); err != nil {
		return TailRewrite{}, err
	}

	groupID := template.Recurrence.GroupID
	tail := seriesFrom(existing, groupID, from)

	plan := TailRewrite{GroupID: groupID}
	startOrder := template.Recurrence.Order
	originalStart := template.Recurrence.OriginalStart

	for i, a := range tail {
		plan.DeleteIDs = append(plan.DeleteIDs, a.ID)
		if i == 0 {
			startOrder = a.Recurrence.Order
		}
		if plan.NotifyDeleteID == "" && template.ShouldNotify && !a.IsBlock() {
			plan.NotifyDeleteID = a.ID
		}
	}
	if originalStart.IsZero() {
		originalStart = earliestStart(existing, groupID, rule.OriginalStart)
	}

	created, err := e.build(rule, template, series{
		groupID:       groupID,
		originalStart: originalStart,
		startOrder:    startOrder,
	})
	if err != nil {
		return TailRewrite{}, err
	}
	plan.Create = created
	return plan, nil
}

// PlanSeriesDelete returns the ids of groupID's instances starting at or
// after from, in chronological order.
func PlanSeriesDelete(existing []model.Appointment, groupID string, from datenorm.LocalInstant) []string {
	tail := seriesFrom(existing, groupID, from)
	ids := make([]string, 0, len(tail))
	for _, a := range tail {
		ids = append(ids, a.ID)
	}
	return ids
}

// GroupMembers returns every instance of groupID sorted by start.
func GroupMembers(existing []model.Appointment, groupID string) []model.Appointment {
	var out []model.Appointment
	for _, a := range existing {
		if a.IsRecurring() && a.Recurrence.GroupID == groupID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func seriesFrom(existing []model.Appointment, groupID string, from datenorm.LocalInstant) []model.Appointment {
	var out []model.Appointment
	for _, a := range GroupMembers(existing, groupID) {
		if !a.Start.Before(from) {
			out = append(out, a)
		}
	}
	return out
}

func earliestStart(existing []model.Appointment, groupID string, fallback datenorm.LocalInstant) datenorm.LocalInstant {
	members := GroupMembers(existing, groupID)
	if len(members) == 0 {
		return fallback
	}
	return members[0].Start
}
