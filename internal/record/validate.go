package record

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"agendacal/internal/model"
)

var (
	ErrInvalidAppointment = errors.New("invalid appointment")
	ErrInvertedInterval   = errors.New("appointment must end after it starts")
	ErrAllOnBooking       = errors.New("only blocks may target every professional")
)

// checked is the validated view of an Appointment.
type checked struct {
	ID             string `validate:"required"`
	CompanyID      string `validate:"required"`
	ProfessionalID string `validate:"required"`
	Status         string `validate:"required,oneof=scheduled confirmed completed cancelled no_show pending block"`
	HasDetail      bool   `validate:"eq=true"`

	appt model.Appointment
}

// Validator checks decoded or client-supplied appointments before they are
// used on a write path.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterStructValidation(validateInterval, checked{})
	return &Validator{v: v}
}

func validateInterval(sl validator.StructLevel) {
	c := sl.Current().Interface().(checked)
	if !c.appt.Start.Before(c.appt.End) {
		sl.ReportError(c.appt.End, "End", "End", "after_start", "")
	}
	if c.ProfessionalID == model.AllProfessionals && !c.appt.IsBlock() {
		sl.ReportError(c.ProfessionalID, "ProfessionalID", "ProfessionalID", "all_on_block", "")
	}
}

// Validate reports every failed rule of a. requireID is false for
// appointments that have not been stored yet.
func (v *Validator) Validate(a model.Appointment, requireID bool) error {
	c := checked{
		ID:             a.ID,
		CompanyID:      a.CompanyID,
		ProfessionalID: a.ProfessionalID,
		Status:         string(a.Status),
		HasDetail:      a.Detail != nil,
		appt:           a,
	}
	if !requireID && c.ID == "" {
		c.ID = "pending"
	}

	err := v.v.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
	}

	// Interval and scope problems have their own sentinels.
	var msgs []string
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "after_start":
			return fmt.Errorf("%w: %s", ErrInvertedInterval, a.ID)
		case "all_on_block":
			return fmt.Errorf("%w: %s", ErrAllOnBooking, a.ID)
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidAppointment, strings.Join(msgs, ", "))
}
