package recurrence

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"agendacal/internal/datenorm"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

const (
	// DefaultMaxOccurrences bounds a series; a daily rule over the maximum
	// one-year span stays below it.
	DefaultMaxOccurrences = 400

	maxCustomIntervalDays = 365
)

// Expander turns recurrence rules into appointment instances.
type Expander struct {
	maxOccurrences int
	newGroupID     func() string
	validate       *validator.Validate
}

type Option func(*Expander)

// WithMaxOccurrences overrides DefaultMaxOccurrences.
func WithMaxOccurrences(n int) Option {
	return func(e *Expander) {
		if n > 0 {
			e.maxOccurrences = n
		}
	}
}

// WithGroupIDs replaces the uuid-based group id generator.
func WithGroupIDs(gen func() string) Option {
	return func(e *Expander) {
		if gen != nil {
			e.newGroupID = gen
		}
	}
}

func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		maxOccurrences: DefaultMaxOccurrences,
		newGroupID:     func() string { return "rec_" + uuid.NewString() },
		validate:       validator.New(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Validate checks a rule without generating anything.
func (e *Expander) Validate(rule model.RecurrenceRule) error {
	if err := e.validate.Struct(rule); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			switch fieldErrs[0].Field() {
			case "IntervalDays":
				return invalid("interval_days", ErrInvalidInterval)
			default:
				return invalid("frequency", ErrUnknownFrequency)
			}
		}
		return invalid("rule", err)
	}

	if rule.Frequency == model.FrequencyCustom && (rule.IntervalDays <= 0 || rule.IntervalDays > maxCustomIntervalDays) {
		return invalid("interval_days", ErrInvalidInterval)
	}
	if rule.OriginalStart.IsZero() {
		return invalid("original_start", ErrMissingStart)
	}
	if rule.EndsAt.Before(rule.OriginalStart) {
		return invalid("ends_at", ErrEndsBeforeStart)
	}
	if rule.EndsAt.After(rule.OriginalStart.AddDate(1, 0, 0)) {
		return invalid("ends_at", ErrSpanTooLong)
	}
	return nil
}

// Starts returns the start instants of the series in order.
func (e *Expander) Starts(rule model.RecurrenceRule) ([]datenorm.LocalInstant, error) {
	if err := e.Validate(rule); err != nil {
		return nil, err
	}
	return e.starts(rule)
}

func (e *Expander) starts(rule model.RecurrenceRule) ([]datenorm.LocalInstant, error) {
	opt, err := ruleOption(rule)
	if err != nil {
		return nil, err
	}
	// One past the cap so overflow is detectable while still terminating.
	opt.Count = e.maxOccurrences + 1

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, invalid("rule", err)
	}

	times := r.All()
	if len(times) > e.maxOccurrences {
		appLog.Warn("recurrence: rule exceeds occurrence cap",
			"frequency", rule.Frequency,
			"cap", e.maxOccurrences,
		)
		return nil, invalid("rule", ErrTooManyOccurrences)
	}

	out := make([]datenorm.LocalInstant, 0, len(times))
	for _, t := range times {
		out = append(out, datenorm.FromTime(t))
	}
	return out, nil
}

// ruleOption maps a rule onto an RRULE. Monthly rules anchored past the
// 28th pick the last of the candidate days each month, which clamps to the
// month length.
func ruleOption(rule model.RecurrenceRule) (rrule.ROption, error) {
	start := rule.OriginalStart.Time()
	opt := rrule.ROption{
		Dtstart:  start,
		Until:    rule.EndsAt.Time(),
		Interval: 1,
	}

	switch rule.Frequency {
	case model.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case model.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case model.FrequencyBiweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case model.FrequencyCustom:
		opt.Freq = rrule.DAILY
		opt.Interval = rule.IntervalDays
	case model.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		day := start.Day()
		if day <= 28 {
			opt.Bymonthday = []int{day}
		} else {
			for d := 28; d <= day; d++ {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
			opt.Bysetpos = []int{-1}
		}
	default:
		return opt, invalid("frequency", ErrUnknownFrequency)
	}
	return opt, nil
}

// Expand generates the series described by rule with template's duration
// and details. All instances share one new group id and rule.OriginalStart.
// Generated instances carry no id; the persistence collaborator assigns them.
func (e *Expander) Expand(rule model.RecurrenceRule, template model.Appointment) ([]model.Appointment, error) {
	if err := checkTemplate(template); err != nil {
		return nil, err
	}
	if err := e.Validate(rule); err != nil {
		return nil, err
	}
	return e.build(rule, template, series{
		groupID:       e.newGroupID(),
		originalStart: rule.OriginalStart,
	})
}

// series carries the identity stamped on every generated instance.
type series struct {
	groupID       string
	originalStart datenorm.LocalInstant
	startOrder    int
}

func (e *Expander) build(rule model.RecurrenceRule, template model.Appointment, s series) ([]model.Appointment, error) {
	starts, err := e.starts(rule)
	if err != nil {
		return nil, err
	}

	duration := template.Duration()
	out := make([]model.Appointment, 0, len(starts))
	for i, start := range starts {
		inst := template.WithTimes(start, start.Add(duration))
		inst.ID = ""
		inst.Recurrence = &model.Recurrence{
			GroupID:            s.groupID,
			Frequency:          rule.Frequency,
			CustomIntervalDays: customDays(rule),
			EndsAt:             rule.EndsAt,
			OriginalStart:      s.originalStart,
			Order:              s.startOrder + i,
		}
		// Only the first instance of a batch triggers a notification.
		inst.ShouldNotify = template.ShouldNotify && i == 0
		out = append(out, inst)
	}

	appLog.Debug("recurrence: expanded series",
		"group_id", s.groupID,
		"frequency", rule.Frequency,
		"count", len(out),
	)
	return out, nil
}

func customDays(rule model.RecurrenceRule) int {
	if rule.Frequency == model.FrequencyCustom {
		return rule.IntervalDays
	}
	return 0
}

func checkTemplate(template model.Appointment) error {
	if template.IsBlock() {
		return invalid("template", ErrBlockRecurrence)
	}
	if !template.Start.Before(template.End) {
		return invalid("template", ErrInvalidDuration)
	}
	return nil
}

// EndsOn is the conventional series end for a calendar date: 23:59:59 local.
func EndsOn(d datenorm.CivilDate, loc *time.Location) datenorm.LocalInstant {
	return d.At(23, 59, loc).Add(59 * time.Second)
}
