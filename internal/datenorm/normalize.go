package datenorm

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	appLog "agendacal/internal/log"
)

var (
	ErrEmpty           = errors.New("datenorm: empty timestamp")
	ErrUnparsable      = errors.New("datenorm: unparsable timestamp")
	ErrUnsupportedType = errors.New("datenorm: unsupported timestamp type")
)

// Timestamp mirrors the {seconds, nanoseconds} shape document stores use.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

// Result is the outcome of normalizing one raw value. When Degraded is true
// Instant holds the normalizer's current time and Err explains why.
type Result struct {
	Instant  LocalInstant
	Degraded bool
	Err      error
}

// DateResult is the date-only counterpart of Result.
type DateResult struct {
	Date     CivilDate
	Degraded bool
	Err      error
}

// Normalizer converts raw timestamps into LocalInstants in one location.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Normalizer for loc (time.Local when nil).
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc, now: time.Now}
}

// WithClock returns a copy that uses now for fallbacks.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	cp := *n
	cp.now = now
	return &cp
}

func (n *Normalizer) Location() *time.Location { return n.loc }

// Now is the normalizer clock reading in its location.
func (n *Normalizer) Now() LocalInstant {
	return n.FromTime(n.now())
}

// FromTime reads t's components in the normalizer location.
func (n *Normalizer) FromTime(t time.Time) LocalInstant {
	return LocalInstant{t: t.In(n.loc)}
}

// Normalize accepts time.Time, *time.Time, LocalInstant, Timestamp,
// ISO-8601 strings, epoch milliseconds (any numeric type or numeric string)
// and {seconds, nanoseconds} maps. It never fails: unusable input degrades
// to the current instant.
func (n *Normalizer) Normalize(raw any) Result {
	t, err := n.toTime(raw)
	if err != nil {
		appLog.Debug("datenorm: degraded timestamp", "value", fmt.Sprintf("%v", raw), "reason", err.Error())
		return Result{Instant: n.Now(), Degraded: true, Err: err}
	}
	return Result{Instant: n.FromTime(t)}
}

// NormalizeDate handles date-only fields (birth dates and the like). Values
// carrying a time are read through UTC components so the calendar date does
// not move with the reader's offset.
func (n *Normalizer) NormalizeDate(raw any) DateResult {
	if s, ok := raw.(string); ok {
		if d, err := ParseCivilDate(strings.TrimSpace(s)); err == nil {
			return DateResult{Date: d}
		}
	}
	t, err := n.toTime(raw)
	if err != nil {
		appLog.Debug("datenorm: degraded date", "value", fmt.Sprintf("%v", raw), "reason", err.Error())
		return DateResult{Date: dateOf(n.now().UTC()), Degraded: true, Err: err}
	}
	return DateResult{Date: dateOf(t.UTC())}
}

func dateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

func (n *Normalizer) toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, ErrEmpty
	case time.Time:
		if v.IsZero() {
			return time.Time{}, ErrEmpty
		}
		return v, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, ErrEmpty
		}
		return *v, nil
	case LocalInstant:
		if v.IsZero() {
			return time.Time{}, ErrEmpty
		}
		return v.t, nil
	case Timestamp:
		return time.Unix(v.Seconds, v.Nanoseconds), nil
	case *Timestamp:
		if v == nil {
			return time.Time{}, ErrEmpty
		}
		return time.Unix(v.Seconds, v.Nanoseconds), nil
	case string:
		return n.parseString(v)
	case json.Number:
		return n.parseString(v.String())
	case int:
		return time.UnixMilli(int64(v)), nil
	case int64:
		return time.UnixMilli(v), nil
	case float64:
		return fromFloatMillis(v)
	case map[string]any:
		return fromSecondsMap(v)
	default:
		return time.Time{}, fmt.Errorf("%w: %T", ErrUnsupportedType, raw)
	}
}

// Layouts without an offset are wall-clock values in the tenant location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (n *Normalizer) parseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromFloatMillis(f)
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, s)
}

func fromFloatMillis(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, ErrUnparsable
	}
	return time.UnixMilli(int64(f)), nil
}

func fromSecondsMap(m map[string]any) (time.Time, error) {
	secs, ok := numberField(m, "seconds", "_seconds")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: map without seconds", ErrUnparsable)
	}
	nanos, _ := numberField(m, "nanoseconds", "_nanoseconds", "nanos")
	return time.Unix(int64(secs), int64(nanos)), nil
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
