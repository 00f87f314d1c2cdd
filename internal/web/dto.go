package web

import (
	"agendacal/internal/calendar"
	"agendacal/internal/datenorm"
	"agendacal/internal/model"
	"agendacal/internal/record"
	"agendacal/internal/slots"
)

// appointmentDTO is the flat JSON shape of model.Appointment.
type appointmentDTO struct {
	ID             string                `json:"id,omitempty"`
	CompanyID      string                `json:"company_id"`
	ProfessionalID string                `json:"professional_id"`
	Start          datenorm.LocalInstant `json:"start"`
	End            datenorm.LocalInstant `json:"end"`
	Status         model.Status          `json:"status"`

	IsBlock     bool             `json:"is_block"`
	BlockScope  model.BlockScope `json:"block_scope,omitempty"`
	Description string           `json:"description,omitempty"`

	ClientID          string   `json:"client_id,omitempty"`
	ServiceIDs        []string `json:"service_ids,omitempty"`
	PriceCents        int64    `json:"price_cents,omitempty"`
	CommissionPercent float64  `json:"commission_percent,omitempty"`
	PaidCents         *int64   `json:"paid_cents,omitempty"`

	ClientName string `json:"client_name,omitempty"`
	Age        int    `json:"age,omitempty"`

	Recurrence   *recurrenceDTO `json:"recurrence,omitempty"`
	ShouldNotify bool           `json:"should_notify"`
	Notes        string         `json:"notes,omitempty"`
}

type recurrenceDTO struct {
	GroupID            string                `json:"group_id"`
	Frequency          model.Frequency       `json:"frequency"`
	CustomIntervalDays int                   `json:"custom_interval_days,omitempty"`
	EndsAt             datenorm.LocalInstant `json:"ends_at"`
	OriginalStart      datenorm.LocalInstant `json:"original_start"`
	Order              int                   `json:"order"`
}

func toAppointmentDTO(a model.Appointment) appointmentDTO {
	out := appointmentDTO{
		ID:             a.ID,
		CompanyID:      a.CompanyID,
		ProfessionalID: a.ProfessionalID,
		Start:          a.Start,
		End:            a.End,
		Status:         a.Status,
		ShouldNotify:   a.ShouldNotify,
		Notes:          a.Notes,
	}
	switch d := a.Detail.(type) {
	case model.Block:
		out.IsBlock = true
		out.BlockScope = d.Scope
		out.Description = d.Description
	case model.Booking:
		out.ClientID = d.ClientID
		out.ServiceIDs = d.ServiceIDs
		out.PriceCents = d.PriceCents
		out.CommissionPercent = d.CommissionPercent
		out.PaidCents = d.PaidCents
	case model.Birthday:
		out.ClientID = d.ClientID
		out.ClientName = d.ClientName
		out.Age = d.Age
	}
	if r := a.Recurrence; r != nil {
		out.Recurrence = &recurrenceDTO{
			GroupID:            r.GroupID,
			Frequency:          r.Frequency,
			CustomIntervalDays: r.CustomIntervalDays,
			EndsAt:             r.EndsAt,
			OriginalStart:      r.OriginalStart,
			Order:              r.Order,
		}
	}
	return out
}

func toAppointmentDTOs(appts []model.Appointment) []appointmentDTO {
	out := make([]appointmentDTO, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentDTO(a))
	}
	return out
}

type eventDTO struct {
	Appointment      appointmentDTO `json:"appointment"`
	AllDay           bool           `json:"all_day"`
	Continued        bool           `json:"continued"`
	Column           int            `json:"column"`
	TotalColumns     int            `json:"total_columns"`
	VisibleHourIndex int            `json:"visible_hour_index"`
	TopRows          float64        `json:"top_rows"`
	HeightRows       float64        `json:"height_rows"`
	LeftPercent      float64        `json:"left_percent"`
	WidthPercent     float64        `json:"width_percent"`
}

type dayDTO struct {
	Date   datenorm.CivilDate `json:"date"`
	Hours  []int              `json:"hours"`
	AllDay []eventDTO         `json:"all_day"`
	Timed  []eventDTO         `json:"timed"`
}

func toEventDTOs(events []model.CalendarEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{
			Appointment:      toAppointmentDTO(ev.Appointment),
			AllDay:           ev.AllDay,
			Continued:        ev.Continued,
			Column:           ev.Column,
			TotalColumns:     ev.TotalColumns,
			VisibleHourIndex: ev.VisibleHourIndex,
			TopRows:          ev.TopRows,
			HeightRows:       ev.HeightRows,
			LeftPercent:      ev.LeftPercent,
			WidthPercent:     ev.WidthPercent,
		})
	}
	return out
}

func toDayDTOs(days []calendar.DayView) []dayDTO {
	out := make([]dayDTO, 0, len(days))
	for _, d := range days {
		out = append(out, dayDTO{
			Date:   d.Date,
			Hours:  d.Hours,
			AllDay: toEventDTOs(d.AllDay),
			Timed:  toEventDTOs(d.Timed),
		})
	}
	return out
}

// snapshotRequest is the object form of a snapshot upload.
type snapshotRequest struct {
	Appointments []record.Raw       `json:"appointments"`
	Clients      []record.RawClient `json:"clients"`
}

type snapshotResponse struct {
	CompanyID    string         `json:"company_id"`
	Version      uint64         `json:"version"`
	Appointments int            `json:"appointments"`
	Clients      int            `json:"clients"`
	Issues       []record.Issue `json:"issues"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Tenants int    `json:"tenants"`
	Views   int    `json:"views"`
}

type companyDTO struct {
	CompanyID string `json:"company_id"`
	Version   uint64 `json:"version"`
	Busy      bool   `json:"busy"`
}

type calendarResponse struct {
	CompanyID string         `json:"company_id"`
	Version   uint64         `json:"version"`
	View      calendar.View  `json:"view"`
	Range     calendar.Range `json:"range"`
	Previous  string         `json:"previous"`
	Next      string         `json:"next"`
	Days      []dayDTO       `json:"days"`
}

type slotsResponse struct {
	Date            datenorm.CivilDate `json:"date"`
	ProfessionalID  string             `json:"professional_id"`
	DurationMinutes int                `json:"duration_minutes"`
	Slots           []slots.Slot       `json:"slots"`
	Free            []string           `json:"free"`
}

// freeLabels renders free starts with the same labels as Slot.
func freeLabels(starts []datenorm.LocalInstant) []string {
	out := make([]string, 0, len(starts))
	for _, s := range starts {
		out = append(out, slots.Label(s))
	}
	return out
}

// bookingCheckRequest asks whether [start, end) is free. Hold keeps the
// tenant's mutation claim on success until the next snapshot upload.
type bookingCheckRequest struct {
	ProfessionalID string `json:"professional_id"`
	Start          any    `json:"start"`
	End            any    `json:"end"`
	IgnoreID       string `json:"ignore_id"`
	Hold           bool   `json:"hold"`
}

type bookingCheckResponse struct {
	OK        bool             `json:"ok"`
	Held      bool             `json:"held"`
	Conflicts []appointmentDTO `json:"conflicts"`
}

type ruleRequest struct {
	Frequency     model.Frequency `json:"frequency"`
	IntervalDays  int             `json:"interval_days"`
	OriginalStart any             `json:"original_start"`
	EndsAt        any             `json:"ends_at"`
	// EndsOn is a YYYY-MM-DD alternative to EndsAt meaning 23:59:59 that day.
	EndsOn string `json:"ends_on"`
}

type templateRequest struct {
	ProfessionalID    string   `json:"professional_id"`
	ClientID          string   `json:"client_id"`
	ServiceIDs        []string `json:"service_ids"`
	Start             any      `json:"start"`
	End               any      `json:"end"`
	Status            string   `json:"status"`
	PriceCents        int64    `json:"price_cents"`
	CommissionPercent float64  `json:"commission_percent"`
	Notes             string   `json:"notes"`
	ShouldNotify      bool     `json:"should_notify"`
	CreatedBy         string   `json:"created_by"`
	IsBlock           bool     `json:"is_block"`
}

type seriesExpandRequest struct {
	Rule     ruleRequest     `json:"rule"`
	Template templateRequest `json:"template"`
}

type seriesExpandResponse struct {
	GroupID      string           `json:"group_id"`
	Count        int              `json:"count"`
	Appointments []appointmentDTO `json:"appointments"`
}

type seriesRewriteRequest struct {
	From     any             `json:"from"`
	Rule     ruleRequest     `json:"rule"`
	Template templateRequest `json:"template"`
}

type seriesRewriteResponse struct {
	GroupID        string           `json:"group_id"`
	DeleteIDs      []string         `json:"delete_ids"`
	NotifyDeleteID string           `json:"notify_delete_id,omitempty"`
	Create         []appointmentDTO `json:"create"`
}

type blocksImportResponse struct {
	Blocks          []appointmentDTO `json:"blocks"`
	TruncatedEvents []string         `json:"truncated_events,omitempty"`
}
