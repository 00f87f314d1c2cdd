package model

import "agendacal/internal/datenorm"

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyCustom   Frequency = "custom"
)

// RecurrenceRule describes a series. OriginalStart <= EndsAt <= OriginalStart
// plus one year; IntervalDays is only read for FrequencyCustom.
type RecurrenceRule struct {
	Frequency     Frequency             `json:"frequency" validate:"required,oneof=daily weekly biweekly monthly custom"`
	IntervalDays  int                   `json:"interval_days,omitempty" validate:"required_if=Frequency custom"`
	EndsAt        datenorm.LocalInstant `json:"ends_at"`
	OriginalStart datenorm.LocalInstant `json:"original_start"`
}
