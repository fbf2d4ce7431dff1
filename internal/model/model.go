package model

import (
	"strings"
	"time"
)

// Tier is the display classification of an event's provider-assigned
// importance.
type Tier string

const (
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierUnknown Tier = "unknown"
)

// TierFromProvider maps the provider's free-form importance value onto a
// Tier. Anything that is not recognizably high/medium/low (including empty
// and null-ish values) is TierUnknown.
func TierFromProvider(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return TierHigh
	case "medium", "moderate":
		return TierMedium
	case "low":
		return TierLow
	default:
		return TierUnknown
	}
}

// RawEvent is a single provider record, exactly as received. Date uses the
// provider's dd/mm/yyyy convention and Time is the wall clock local to the
// event's own country. Columns the provider defines beyond the known set are
// carried in Extra, with ExtraOrder preserving their original column order.
type RawEvent struct {
	ID         string
	Date       string // dd/mm/yyyy
	Time       string // "15:04", "All Day", or empty
	Zone       string // country name, also the source timezone key
	Event      string // free-text description
	Importance string

	Extra      map[string]string
	ExtraOrder []string
}

// Event is the presentation-ready form of exactly one RawEvent.
//
// LocalTime holds the wall clock converted to the target zone, or the
// original raw value when the source time was absent or unparseable. Start is
// the zoned instant in the target zone and is zero in the passthrough case.
// Day is midnight of the (unconverted) event date in the target zone.
type Event struct {
	LocalTime     string
	DayOfWeek     string
	Country       string
	Name          string
	Date          string // original dd/mm/yyyy
	Importance    Tier
	DaysFromToday int

	Start time.Time
	Day   time.Time

	Extra      map[string]string
	ExtraOrder []string
}

// ReminderTask is one pending email reminder for one event. It is created at
// batch-scheduling time and consumed at most once when a tick observes
// SendAt has passed. Tasks live only in process memory.
type ReminderTask struct {
	Event      Event
	Recipients []string
	SendAt     time.Time
}
