// Package record converts loosely-typed stored appointment documents into
// model.Appointment values.
package record

import (
	"errors"
	"strings"

	"agendacal/internal/datenorm"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

// Raw is one stored appointment document. Timestamp fields accept every
// shape datenorm understands.
type Raw struct {
	ID             string   `json:"id"`
	CompanyID      string   `json:"companyId"`
	ProfessionalID string   `json:"professionalId"`
	ClientID       string   `json:"clientId"`
	ServiceID      string   `json:"serviceId"`
	ServiceIDs     []string `json:"serviceIds"`

	Start any `json:"inicio"`
	End   any `json:"fim"`

	PriceCents        int64   `json:"precoCentavos"`
	CommissionPercent float64 `json:"comissaoPercent"`
	PaidCents         *int64  `json:"valorPagoCentavos"`

	Status string `json:"status"`
	Notes  string `json:"observacoes"`

	IsBlock          bool   `json:"isBlock"`
	BlockDescription string `json:"blockDescription"`
	BlockScope       string `json:"blockScope"`

	CreatedBy string `json:"createdByUid"`

	RecurrenceGroupID       string `json:"recurrenceGroupId"`
	RecurrenceFrequency     string `json:"recurrenceFrequency"`
	RecurrenceIntervalDays  int    `json:"recurrenceCustomIntervalDays"`
	RecurrenceOrder         int    `json:"recurrenceOrder"`
	RecurrenceOriginalStart any    `json:"recurrenceOriginalStart"`
	RecurrenceEndsAt        any    `json:"recurrenceEndsAt"`

	ShouldNotify bool `json:"shouldNotify"`
}

// Issue records a field that could not be read faithfully. The record is
// still decoded.
type Issue struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// statusAliases maps stored status spellings to model statuses.
var statusAliases = map[string]model.Status{
	"agendado":   model.StatusScheduled,
	"confirmado": model.StatusConfirmed,
	"concluido":  model.StatusCompleted,
	"cancelado":  model.StatusCancelled,
	"no_show":    model.StatusNoShow,
	"pendente":   model.StatusPending,
	"bloqueio":   model.StatusBlock,
}

// ParseStatus accepts both stored and model spellings.
func ParseStatus(s string) (model.Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if st, ok := statusAliases[s]; ok {
		return st, true
	}
	for _, st := range model.Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// RawClient is one stored client document; only the fields the calendar
// reads are kept.
type RawClient struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	Name      string `json:"nome"`
	BirthDate any    `json:"dataNascimento"`
}

type Decoder struct {
	norm      *datenorm.Normalizer
	validator *Validator
}

func NewDecoder(norm *datenorm.Normalizer) *Decoder {
	return &Decoder{norm: norm, validator: NewValidator()}
}

// Decode converts raw into an Appointment. id overrides raw.ID when set.
// Unreadable timestamps degrade to now and a missing end collapses onto the
// start; each such degradation is reported as an Issue.
func (d *Decoder) Decode(id string, raw Raw) (model.Appointment, []Issue) {
	if id == "" {
		id = raw.ID
	}
	var issues []Issue
	issue := func(field, msg string) {
		issues = append(issues, Issue{RecordID: id, Field: field, Message: msg})
	}

	a := model.Appointment{
		ID:             id,
		CompanyID:      raw.CompanyID,
		ProfessionalID: raw.ProfessionalID,
		Notes:          raw.Notes,
		CreatedBy:      raw.CreatedBy,
		ShouldNotify:   raw.ShouldNotify,
	}

	start := d.norm.Normalize(raw.Start)
	if start.Degraded {
		issue("inicio", start.Err.Error())
	}
	a.Start = start.Instant

	if raw.End == nil {
		issue("fim", "missing end, using start")
		a.End = a.Start
	} else {
		end := d.norm.Normalize(raw.End)
		if end.Degraded {
			issue("fim", end.Err.Error())
		}
		a.End = end.Instant
	}

	status, ok := ParseStatus(raw.Status)
	if !ok {
		if raw.Status != "" {
			issue("status", "unknown status "+raw.Status)
		}
		status = model.StatusScheduled
	}

	// A stored "bloqueio" status marks a block even without the flag.
	if raw.IsBlock || status == model.StatusBlock {
		scope := model.ScopeSingle
		if raw.BlockScope == string(model.ScopeAll) || raw.ProfessionalID == model.AllProfessionals {
			scope = model.ScopeAll
		}
		a.Status = model.StatusBlock
		a.Detail = model.Block{Scope: scope, Description: raw.BlockDescription}
	} else {
		a.Status = status
		a.Detail = model.Booking{
			ClientID:          raw.ClientID,
			ServiceIDs:        serviceIDs(raw),
			PriceCents:        raw.PriceCents,
			CommissionPercent: raw.CommissionPercent,
			PaidCents:         raw.PaidCents,
		}
	}

	if raw.RecurrenceGroupID != "" {
		rec := &model.Recurrence{
			GroupID:            raw.RecurrenceGroupID,
			Frequency:          model.Frequency(raw.RecurrenceFrequency),
			CustomIntervalDays: raw.RecurrenceIntervalDays,
			Order:              raw.RecurrenceOrder,
		}
		if raw.RecurrenceOriginalStart != nil {
			res := d.norm.Normalize(raw.RecurrenceOriginalStart)
			if res.Degraded {
				issue("recurrenceOriginalStart", res.Err.Error())
			}
			rec.OriginalStart = res.Instant
		}
		if raw.RecurrenceEndsAt != nil {
			res := d.norm.Normalize(raw.RecurrenceEndsAt)
			if res.Degraded {
				issue("recurrenceEndsAt", res.Err.Error())
			}
			rec.EndsAt = res.Instant
		}
		a.Recurrence = rec
	}

	return a, issues
}

// DecodeAll decodes every record, keeping degraded ones, and validates
// each result. A failed rule becomes an Issue; the record is still kept,
// and the slot checker ignores inverted intervals and bookings stored
// under "__all__".
func (d *Decoder) DecodeAll(raws []Raw) ([]model.Appointment, []Issue) {
	out := make([]model.Appointment, 0, len(raws))
	var issues []Issue
	for _, raw := range raws {
		a, iss := d.Decode("", raw)
		out = append(out, a)
		issues = append(issues, iss...)
		if err := d.validator.Validate(a, true); err != nil {
			issues = append(issues, Issue{RecordID: a.ID, Field: fieldOf(err), Message: err.Error()})
		}
	}
	if len(issues) > 0 {
		appLog.Warn("record: degraded fields while decoding",
			"records", len(raws),
			"issues", len(issues),
		)
	}
	return out, issues
}

// serviceIDs prefers the ordered list and falls back to the single legacy
// field.
func serviceIDs(raw Raw) []string {
	if len(raw.ServiceIDs) > 0 {
		out := make([]string, len(raw.ServiceIDs))
		copy(out, raw.ServiceIDs)
		return out
	}
	if raw.ServiceID != "" {
		return []string{raw.ServiceID}
	}
	return nil
}

func fieldOf(err error) string {
	switch {
	case errors.Is(err, ErrInvertedInterval):
		return "fim"
	case errors.Is(err, ErrAllOnBooking):
		return "professionalId"
	default:
		return "record"
	}
}

// DecodeClients reads client birth dates through NormalizeDate. A birth
// date that cannot be read is reported and left zero, so no birthday is
// shown for that client.
func (d *Decoder) DecodeClients(raws []RawClient) ([]model.Client, []Issue) {
	out := make([]model.Client, 0, len(raws))
	var issues []Issue
	for _, raw := range raws {
		c := model.Client{ID: raw.ID, CompanyID: raw.CompanyID, Name: raw.Name}
		if raw.BirthDate != nil {
			res := d.norm.NormalizeDate(raw.BirthDate)
			if res.Degraded {
				issues = append(issues, Issue{RecordID: raw.ID, Field: "dataNascimento", Message: res.Err.Error()})
			} else {
				c.BirthDate = res.Date
			}
		}
		out = append(out, c)
	}
	return out, issues
}
