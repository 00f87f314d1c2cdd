package recurrence

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/datenorm"
	"agendacal/internal/model"
)

var loc = time.FixedZone("BRT", -3*60*60)

func date(y int, m time.Month, d int) datenorm.CivilDate {
	return datenorm.CivilDate{Year: y, Month: m, Day: d}
}

func template(start datenorm.LocalInstant, d time.Duration) model.Appointment {
	return model.Appointment{
		ID:             "tpl",
		CompanyID:      "co",
		ProfessionalID: "P",
		Start:          start,
		End:            start.Add(d),
		Status:         model.StatusScheduled,
		Detail:         model.Booking{ClientID: "client", ServiceIDs: []string{"cut"}},
		ShouldNotify:   true,
	}
}

func fixedGroup() Option {
	return WithGroupIDs(func() string { return "g1" })
}

func TestExpand_WeeklyScenario(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	rule := model.RecurrenceRule{
		Frequency:     model.FrequencyWeekly,
		OriginalStart: start,
		EndsAt:        EndsOn(date(2024, time.March, 1), loc),
	}

	got, err := NewExpander(fixedGroup()).Expand(rule, template(start, time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 9)

	assert.Equal(t, "2024-01-01", got[0].Start.Date().String())
	assert.Equal(t, "2024-02-26", got[8].Start.Date().String())
	for i, a := range got {
		assert.Equal(t, 9, a.Start.Hour())
		assert.Equal(t, time.Hour, a.Duration())
		assert.Empty(t, a.ID)
		require.NotNil(t, a.Recurrence)
		assert.Equal(t, "g1", a.Recurrence.GroupID)
		assert.Equal(t, i, a.Recurrence.Order)
		assert.True(t, a.Recurrence.OriginalStart.Equal(start))
		assert.Equal(t, i == 0, a.ShouldNotify, "only the first instance notifies")
		if i > 0 {
			assert.Equal(t, 7*24*time.Hour, a.Start.Sub(got[i-1].Start))
		}
	}
}

func TestExpand_Frequencies(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	cases := []struct {
		name      string
		rule      model.RecurrenceRule
		wantDates []string
	}{
		{
			name: "daily",
			rule: model.RecurrenceRule{Frequency: model.FrequencyDaily, EndsAt: EndsOn(date(2024, time.January, 3), loc)},
			wantDates: []string{"2024-01-01", "2024-01-02", "2024-01-03"},
		},
		{
			name: "biweekly",
			rule: model.RecurrenceRule{Frequency: model.FrequencyBiweekly, EndsAt: EndsOn(date(2024, time.January, 29), loc)},
			wantDates: []string{"2024-01-01", "2024-01-15", "2024-01-29"},
		},
		{
			name: "custom",
			rule: model.RecurrenceRule{Frequency: model.FrequencyCustom, IntervalDays: 3, EndsAt: EndsOn(date(2024, time.January, 10), loc)},
			wantDates: []string{"2024-01-01", "2024-01-04", "2024-01-07", "2024-01-10"},
		},
		{
			name: "until is inclusive",
			rule: model.RecurrenceRule{Frequency: model.FrequencyDaily, EndsAt: date(2024, time.January, 2).At(9, 0, loc)},
			wantDates: []string{"2024-01-01", "2024-01-02"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.rule.OriginalStart = start
			starts, err := NewExpander().Starts(tc.rule)
			require.NoError(t, err)

			var got []string
			for _, s := range starts {
				got = append(got, s.Date().String())
			}
			assert.Equal(t, tc.wantDates, got)
		})
	}
}

func TestExpand_MonthlyClampsToMonthEnd(t *testing.T) {
	start := date(2024, time.January, 31).At(14, 30, loc)
	rule := model.RecurrenceRule{
		Frequency:     model.FrequencyMonthly,
		OriginalStart: start,
		EndsAt:        EndsOn(date(2024, time.May, 31), loc),
	}

	starts, err := NewExpander().Starts(rule)
	require.NoError(t, err)

	var got []string
	for _, s := range starts {
		got = append(got, s.Format("2006-01-02 15:04"))
	}
	assert.Equal(t, []string{
		"2024-01-31 14:30",
		"2024-02-29 14:30",
		"2024-03-31 14:30",
		"2024-04-30 14:30",
		"2024-05-31 14:30",
	}, got)
}

func TestExpand_MonthlyEarlyDay(t *testing.T) {
	start := date(2024, time.January, 15).At(10, 0, loc)
	rule := model.RecurrenceRule{
		Frequency:     model.FrequencyMonthly,
		OriginalStart: start,
		EndsAt:        EndsOn(date(2024, time.April, 14), loc),
	}

	starts, err := NewExpander().Starts(rule)
	require.NoError(t, err)
	require.Len(t, starts, 3)
	assert.Equal(t, "2024-03-15", starts[2].Date().String())
}

func TestExpand_DailyYearFitsCap(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	rule := model.RecurrenceRule{
		Frequency:     model.FrequencyDaily,
		OriginalStart: start,
		EndsAt:        start.AddDate(1, 0, 0),
	}

	starts, err := NewExpander().Starts(rule)
	require.NoError(t, err)
	assert.Len(t, starts, 367)
}

func TestExpand_TooManyOccurrences(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	rule := model.RecurrenceRule{
		Frequency:     model.FrequencyDaily,
		OriginalStart: start,
		EndsAt:        EndsOn(date(2024, time.January, 10), loc),
	}

	_, err := NewExpander(WithMaxOccurrences(5)).Expand(rule, template(start, time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyOccurrences)

	got, err := NewExpander(WithMaxOccurrences(10)).Expand(rule, template(start, time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestValidate_Rejections(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	cases := []struct {
		name  string
		rule  model.RecurrenceRule
		want  error
		field string
	}{
		{"ends before start", model.RecurrenceRule{Frequency: model.FrequencyWeekly, OriginalStart: start, EndsAt: start.Add(-time.Minute)}, ErrEndsBeforeStart, "ends_at"},
		{"more than a year", model.RecurrenceRule{Frequency: model.FrequencyWeekly, OriginalStart: start, EndsAt: start.AddDate(1, 0, 1)}, ErrSpanTooLong, "ends_at"},
		{"custom without interval", model.RecurrenceRule{Frequency: model.FrequencyCustom, OriginalStart: start, EndsAt: start.AddDate(0, 1, 0)}, ErrInvalidInterval, "interval_days"},
		{"custom negative interval", model.RecurrenceRule{Frequency: model.FrequencyCustom, IntervalDays: -2, OriginalStart: start, EndsAt: start.AddDate(0, 1, 0)}, ErrInvalidInterval, "interval_days"},
		{"custom interval too large", model.RecurrenceRule{Frequency: model.FrequencyCustom, IntervalDays: 366, OriginalStart: start, EndsAt: start.AddDate(0, 1, 0)}, ErrInvalidInterval, "interval_days"},
		{"unknown frequency", model.RecurrenceRule{Frequency: "yearly", OriginalStart: start, EndsAt: start.AddDate(0, 1, 0)}, ErrUnknownFrequency, "frequency"},
		{"missing frequency", model.RecurrenceRule{OriginalStart: start, EndsAt: start.AddDate(0, 1, 0)}, ErrUnknownFrequency, "frequency"},
		{"missing start", model.RecurrenceRule{Frequency: model.FrequencyDaily}, ErrMissingStart, "original_start"},
	}

	e := NewExpander()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := e.Validate(tc.rule)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	assert.NoError(t, e.Validate(model.RecurrenceRule{Frequency: model.FrequencyWeekly, OriginalStart: start, EndsAt: start}))
	assert.NoError(t, e.Validate(model.RecurrenceRule{Frequency: model.FrequencyWeekly, OriginalStart: start, EndsAt: start.AddDate(1, 0, 0)}))
}

func TestExpand_RejectsBadTemplates(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	rule := model.RecurrenceRule{Frequency: model.FrequencyDaily, OriginalStart: start, EndsAt: EndsOn(date(2024, time.January, 3), loc)}
	e := NewExpander()

	blk := template(start, time.Hour)
	blk.Status = model.StatusBlock
	blk.Detail = model.Block{Scope: model.ScopeSingle}
	_, err := e.Expand(rule, blk)
	assert.ErrorIs(t, err, ErrBlockRecurrence)

	_, err = e.Expand(rule, template(start, 0))
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestExpand_NewGroupPerCall(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	rule := model.RecurrenceRule{Frequency: model.FrequencyDaily, OriginalStart: start, EndsAt: EndsOn(date(2024, time.January, 2), loc)}
	e := NewExpander()

	a, err := e.Expand(rule, template(start, time.Hour))
	require.NoError(t, err)
	b, err := e.Expand(rule, template(start, time.Hour))
	require.NoError(t, err)

	assert.NotEmpty(t, a[0].Recurrence.GroupID)
	assert.NotEqual(t, a[0].Recurrence.GroupID, b[0].Recurrence.GroupID)
	assert.Equal(t, a[0].Recurrence.GroupID, a[1].Recurrence.GroupID)
}

func withIDs(appts []model.Appointment) []model.Appointment {
	for i := range appts {
		appts[i].ID = fmt.Sprintf("inst-%d", i)
	}
	return appts
}

func TestPlanTailRewrite(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	e := NewExpander(fixedGroup())
	original := model.RecurrenceRule{
		Frequency:     model.FrequencyWeekly,
		OriginalStart: start,
		EndsAt:        EndsOn(date(2024, time.January, 29), loc),
	}
	existing, err := e.Expand(original, template(start, time.Hour))
	require.NoError(t, err)
	existing = withIDs(existing)
	require.Len(t, existing, 5)

	// Move the series from the third instance onwards to 10:00, 90 minutes.
	edited := existing[2]
	newStart := edited.Start.Add(time.Hour)
	edited = edited.WithTimes(newStart, newStart.Add(90*time.Minute))
	edited.ShouldNotify = true

	rule := model.RecurrenceRule{
		Frequency:     model.FrequencyWeekly,
		OriginalStart: newStart,
		EndsAt:        original.EndsAt,
	}
	plan, err := e.PlanTailRewrite(existing, existing[2].Start, rule, edited)
	require.NoError(t, err)

	assert.Equal(t, "g1", plan.GroupID)
	assert.Equal(t, []string{"inst-2", "inst-3", "inst-4"}, plan.DeleteIDs)
	assert.Equal(t, "inst-2", plan.NotifyDeleteID)

	require.Len(t, plan.Create, 3)
	for i, a := range plan.Create {
		assert.Equal(t, "g1", a.Recurrence.GroupID)
		assert.Equal(t, 2+i, a.Recurrence.Order)
		assert.True(t, a.Recurrence.OriginalStart.Equal(start), "group keeps its original start")
		assert.Equal(t, 10, a.Start.Hour())
		assert.Equal(t, 90*time.Minute, a.Duration())
		assert.Equal(t, i == 0, a.ShouldNotify)
	}
}

func TestPlanTailRewrite_RequiresGroup(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	rule := model.RecurrenceRule{Frequency: model.FrequencyDaily, OriginalStart: start, EndsAt: start.AddDate(0, 0, 2)}

	_, err := NewExpander().PlanTailRewrite(nil, start, rule, template(start, time.Hour))
	assert.ErrorIs(t, err, ErrNotRecurring)
}

func TestPlanSeriesDelete(t *testing.T) {
	start := date(2024, time.January, 1).At(9, 0, loc)
	e := NewExpander(fixedGroup())
	rule := model.RecurrenceRule{Frequency: model.FrequencyDaily, OriginalStart: start, EndsAt: EndsOn(date(2024, time.January, 4), loc)}
	existing, err := e.Expand(rule, template(start, time.Hour))
	require.NoError(t, err)
	existing = withIDs(existing)

	other := template(start, time.Hour)
	other.ID = "other"
	other.Recurrence = &model.Recurrence{GroupID: "g2"}
	existing = append(existing, other)

	// Input order must not matter.
	existing[0], existing[3] = existing[3], existing[0]

	ids := PlanSeriesDelete(existing, "g1", date(2024, time.January, 2).At(0, 0, loc))
	assert.Equal(t, []string{"inst-1", "inst-2", "inst-3"}, ids)
}
