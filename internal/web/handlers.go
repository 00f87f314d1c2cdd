package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"agendacal/internal/calendar"
	"agendacal/internal/datenorm"
	"agendacal/internal/ics"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
	"agendacal/internal/record"
	"agendacal/internal/recurrence"
	"agendacal/internal/slots"
	"agendacal/internal/snapshot"
)

const (
	defaultSlotMinutes = 30
	defaultImportDays  = 30
)

var (
	errBadRequest = errors.New("bad request")
	errBusy       = errors.New("another change is in progress for this company")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *recurrence.ValidationError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, calendar.ErrUnknownView), errors.Is(err, ics.ErrEmptyBody):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrUnknownCompany):
		return http.StatusNotFound
	case errors.Is(err, errBusy):
		return http.StatusConflict
	case errors.As(err, &verr),
		errors.Is(err, record.ErrInvalidAppointment),
		errors.Is(err, record.ErrInvertedInterval),
		errors.Is(err, record.ErrAllOnBooking):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, status, "internal server error")
		return
	}
	appLog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "reason", err.Error())
	writeError(w, status, err.Error())
}

// strictInstant normalizes raw but refuses the degraded fallback, which
// is fine for display and wrong for anything written back.
func (s *Server) strictInstant(field string, raw any) (datenorm.LocalInstant, error) {
	if raw == nil {
		return datenorm.LocalInstant{}, badRequest("%s is required", field)
	}
	res := s.norm.Normalize(raw)
	if res.Degraded {
		return datenorm.LocalInstant{}, badRequest("%s: %v", field, res.Err)
	}
	return res.Instant, nil
}

// dateParam reads a YYYY-MM-DD query parameter, today when absent.
func (s *Server) dateParam(r *http.Request, name string) (datenorm.CivilDate, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return s.norm.Now().Date(), nil
	}
	d, err := datenorm.ParseCivilDate(v)
	if err != nil {
		return datenorm.CivilDate{}, badRequest("%s: %v", name, err)
	}
	return d, nil
}

func (s *Server) snapshotOf(company string) (snapshot.Snapshot, error) {
	snap, ok := s.store.Get(company)
	if !ok {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %s", snapshot.ErrUnknownCompany, company)
	}
	return snap, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Tenants: len(s.store.Companies()),
		Views:   s.views.Len(),
	})
}

// handleCompanies lists the tenants held in memory without touching their
// idle clocks.
func (s *Server) handleCompanies(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	companies := s.store.Companies()
	out := make([]companyDTO, 0, len(companies))
	for _, c := range companies {
		out = append(out, companyDTO{
			CompanyID: c,
			Version:   s.store.Version(c),
			Busy:      s.interlock.Busy(c),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSnapshot replaces the company's appointment window and ends any
// mutation claim, since the client has now seen its own write. The body is
// either a bare array of records or an object that also carries clients.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	company := ps.ByName("company")

	var body json.RawMessage
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, badRequest("invalid snapshot body: %v", err))
		return
	}
	var req snapshotRequest
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &req.Appointments); err != nil {
			s.fail(w, r, badRequest("invalid snapshot body: %v", err))
			return
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		if err := json.Unmarshal(trimmed, &req); err != nil {
			s.fail(w, r, badRequest("invalid snapshot body: %v", err))
			return
		}
	default:
		s.fail(w, r, badRequest("snapshot must be an array or an object"))
		return
	}
	for i := range req.Appointments {
		if req.Appointments[i].CompanyID == "" {
			req.Appointments[i].CompanyID = company
		}
	}
	for i := range req.Clients {
		if req.Clients[i].CompanyID == "" {
			req.Clients[i].CompanyID = company
		}
	}

	appts, issues := s.decoder.DecodeAll(req.Appointments)
	clients, clientIssues := s.decoder.DecodeClients(req.Clients)
	issues = append(issues, clientIssues...)
	snap := s.store.ReplaceWithClients(company, appts, clients)
	s.interlock.End(company)

	if issues == nil {
		issues = []record.Issue{}
	}
	appLog.Info("snapshot loaded", "company", company, "version", snap.Version,
		"appointments", len(appts), "clients", len(clients), "issues", len(issues))
	writeJSON(w, http.StatusOK, snapshotResponse{
		CompanyID:    company,
		Version:      snap.Version,
		Appointments: len(appts),
		Clients:      len(clients),
		Issues:       issues,
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	company := ps.ByName("company")

	view, err := calendar.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	date, err := s.dateParam(r, "date")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	days, version, err := s.views.Days(company, view, date)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		CompanyID: company,
		Version:   version,
		View:      view,
		Range:     calendar.RangeFor(view, date, s.calOpts.WeekStart),
		Previous:  calendar.Navigate(view, date, -1).String(),
		Next:      calendar.Navigate(view, date, 1).String(),
		Days:      toDayDTOs(days),
	})
}

func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	company := ps.ByName("company")
	snap, err := s.snapshotOf(company)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	appts := snap.Appointments
	if prof := r.URL.Query().Get("professional"); prof != "" {
		appts = nil
		for _, a := range snap.Appointments {
			if a.ForProfessional(prof) {
				appts = append(appts, a)
			}
		}
	}

	body := ics.ExportAppointments(appts, ics.ExportOptions{
		Name:     company,
		Timezone: s.cfg.Timezone,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+company+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, body); err != nil {
		appLog.Error("failed to write ICS response", err, "company", company)
	}
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	company := ps.ByName("company")
	q := r.URL.Query()

	professional := strings.TrimSpace(q.Get("professional"))
	if professional == "" {
		s.fail(w, r, badRequest("professional is required"))
		return
	}
	date, err := s.dateParam(r, "date")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	minutes := defaultSlotMinutes
	if v := q.Get("duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, r, badRequest("duration must be a positive number of minutes"))
			return
		}
		minutes = n
	}

	snap, err := s.snapshotOf(company)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	duration := time.Duration(minutes) * time.Minute
	writeJSON(w, http.StatusOK, slotsResponse{
		Date:            date,
		ProfessionalID:  professional,
		DurationMinutes: minutes,
		Slots:           s.checker.Availability(date, professional, duration, snap.Appointments),
		Free:            freeLabels(s.checker.FreeSlots(date, professional, duration, snap.Appointments)),
	})
}

// handleBookingCheck validates a candidate interval against the snapshot.
// It takes the company's mutation claim for the duration of the check; with
// hold set a successful check keeps it until the next snapshot upload.
func (s *Server) handleBookingCheck(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	company := ps.ByName("company")

	var req bookingCheckRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, badRequest("invalid body: %v", err))
		return
	}
	if req.ProfessionalID == "" {
		s.fail(w, r, badRequest("professional_id is required"))
		return
	}
	start, err := s.strictInstant("start", req.Start)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	end, err := s.strictInstant("end", req.End)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !start.Before(end) {
		s.fail(w, r, badRequest("end must be after start"))
		return
	}

	snap, err := s.snapshotOf(company)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !s.interlock.TryBegin(company) {
		s.fail(w, r, errBusy)
		return
	}

	candidate := model.Interval{Start: start, End: end}
	conflicts := slots.Conflicts(candidate, req.ProfessionalID, snap.Appointments, req.IgnoreID)
	ok := slots.CanBook(candidate, req.ProfessionalID, snap.Appointments, req.IgnoreID)

	held := ok && req.Hold
	if !held {
		s.interlock.End(company)
	}

	resp := bookingCheckResponse{OK: ok, Held: held, Conflicts: toAppointmentDTOs(conflicts)}
	if !ok {
		appLog.Info("booking rejected", "company", company, "professional", req.ProfessionalID, "conflicts", len(conflicts))
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReleaseHold(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	s.interlock.End(ps.ByName("company"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSeriesExpand(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	company := ps.ByName("company")

	var req seriesExpandRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, badRequest("invalid body: %v", err))
		return
	}
	template, err := s.templateFrom(company, req.Template)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rule, err := s.ruleFrom(req.Rule, template.Start)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	created, err := s.expander.Expand(rule, template)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := seriesExpandResponse{Count: len(created), Appointments: toAppointmentDTOs(created)}
	if len(created) > 0 {
		resp.GroupID = created[0].Recurrence.GroupID
	}
	appLog.Info("series expanded", "company", company, "group_id", resp.GroupID, "count", resp.Count)
	writeJSON(w, http.StatusOK, resp)
}

// handleSeriesRewrite plans a "this and following" edit. The first group
// member at or after from supplies the series identity.
func (s *Server) handleSeriesRewrite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	company := ps.ByName("company")
	group := ps.ByName("group")

	var req seriesRewriteRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, badRequest("invalid body: %v", err))
		return
	}
	from, err := s.strictInstant("from", req.From)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	template, err := s.templateFrom(company, req.Template)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rule, err := s.ruleFrom(req.Rule, template.Start)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	snap, err := s.snapshotOf(company)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var anchor *model.Appointment
	for _, m := range recurrence.GroupMembers(snap.Appointments, group) {
		if !m.Start.Before(from) {
			anchor = &m
			break
		}
	}
	if anchor == nil {
		writeError(w, http.StatusNotFound, "no instance of "+group+" at or after from")
		return
	}
	rec := *anchor.Recurrence
	template.Recurrence = &rec

	plan, err := s.expander.PlanTailRewrite(snap.Appointments, from, rule, template)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if plan.DeleteIDs == nil {
		plan.DeleteIDs = []string{}
	}
	appLog.Info("series rewrite planned", "company", company, "group_id", group, "delete", len(plan.DeleteIDs), "create", len(plan.Create))
	writeJSON(w, http.StatusOK, seriesRewriteResponse{
		GroupID:        plan.GroupID,
		DeleteIDs:      plan.DeleteIDs,
		NotifyDeleteID: plan.NotifyDeleteID,
		Create:         toAppointmentDTOs(plan.Create),
	})
}

func (s *Server) handleBlocksImport(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	company := ps.ByName("company")
	q := r.URL.Query()

	from, err := s.dateParam(r, "from")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to := from.AddDays(defaultImportDays)
	if q.Get("to") != "" {
		if to, err = s.dateParam(r, "to"); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if to.Before(from) {
		s.fail(w, r, badRequest("to is before from"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, badRequest("read body: %v", err))
		return
	}

	src := ics.Source{ID: company, ProfessionalID: q.Get("professional"), Location: s.loc}
	events, err := ics.ParseBlocks(src, body)
	if err != nil {
		if !errors.Is(err, ics.ErrEmptyBody) {
			err = badRequest("invalid calendar: %v", err)
		}
		s.fail(w, r, err)
		return
	}

	res, err := ics.ToBlocks(events, ics.BlockOptions{
		CompanyID:              company,
		CreatedBy:              q.Get("created_by"),
		RangeStart:             from.Midnight(s.loc).Time(),
		RangeEnd:               recurrence.EndsOn(to, s.loc).Time(),
		MaxOccurrencesPerEvent: s.cfg.Recurrence.MaxOccurrences,
	})
	if err != nil {
		s.fail(w, r, badRequest("%v", err))
		return
	}

	appLog.Info("blocks imported", "company", company, "events", len(events), "blocks", len(res.Blocks))
	writeJSON(w, http.StatusOK, blocksImportResponse{
		Blocks:          toAppointmentDTOs(res.Blocks),
		TruncatedEvents: res.TruncatedEvents,
	})
}

// templateFrom builds an unsaved appointment from a request and validates
// it the way a write path would.
func (s *Server) templateFrom(company string, t templateRequest) (model.Appointment, error) {
	start, err := s.strictInstant("template.start", t.Start)
	if err != nil {
		return model.Appointment{}, err
	}
	end, err := s.strictInstant("template.end", t.End)
	if err != nil {
		return model.Appointment{}, err
	}

	status := model.StatusScheduled
	if t.Status != "" {
		st, ok := record.ParseStatus(t.Status)
		if !ok {
			return model.Appointment{}, badRequest("unknown status %q", t.Status)
		}
		status = st
	}

	a := model.Appointment{
		CompanyID:      company,
		ProfessionalID: t.ProfessionalID,
		Start:          start,
		End:            end,
		Status:         status,
		ShouldNotify:   t.ShouldNotify,
		Notes:          t.Notes,
		CreatedBy:      t.CreatedBy,
	}
	if t.IsBlock || status == model.StatusBlock {
		scope := model.ScopeSingle
		if t.ProfessionalID == model.AllProfessionals {
			scope = model.ScopeAll
		}
		a.Status = model.StatusBlock
		a.Detail = model.Block{Scope: scope, Description: t.Notes}
	} else {
		a.Detail = model.Booking{
			ClientID:          t.ClientID,
			ServiceIDs:        t.ServiceIDs,
			PriceCents:        t.PriceCents,
			CommissionPercent: t.CommissionPercent,
		}
	}

	if err := s.validator.Validate(a, false); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

// ruleFrom reads a rule; original_start defaults to the template start and
// ends_on is the date form of ends_at.
func (s *Server) ruleFrom(req ruleRequest, templateStart datenorm.LocalInstant) (model.RecurrenceRule, error) {
	rule := model.RecurrenceRule{
		Frequency:     req.Frequency,
		IntervalDays:  req.IntervalDays,
		OriginalStart: templateStart,
	}
	if req.OriginalStart != nil {
		start, err := s.strictInstant("rule.original_start", req.OriginalStart)
		if err != nil {
			return rule, err
		}
		rule.OriginalStart = start
	}

	switch {
	case req.EndsOn != "":
		d, err := datenorm.ParseCivilDate(req.EndsOn)
		if err != nil {
			return rule, badRequest("rule.ends_on: %v", err)
		}
		rule.EndsAt = recurrence.EndsOn(d, s.loc)
	case req.EndsAt != nil:
		end, err := s.strictInstant("rule.ends_at", req.EndsAt)
		if err != nil {
			return rule, err
		}
		rule.EndsAt = end
	default:
		return rule, badRequest("rule needs ends_at or ends_on")
	}
	return rule, nil
}
