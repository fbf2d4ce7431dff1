package calendar

import (
	"fmt"
	"time"

	"ecocal/internal/log"
	"ecocal/internal/metrics"
	"ecocal/internal/model"
)

const (
	// DateLayout is the provider's dd/mm/yyyy date convention.
	DateLayout = "02/01/2006"
	timeLayout = "15:04"
)

// ParseError describes a single malformed provider row. It is row-scoped:
// the row is excluded from the batch and the batch continues.
type ParseError struct {
	Row   int
	Field string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: bad %s: %v", e.Row, e.Field, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Result is the outcome of normalizing one raw batch. Dropped counts rows
// excluded because they were malformed; FilteredUnknown counts rows excluded
// by the unknown-importance display policy. Both exclusions are observable
// here and in the metrics, never silent.
type Result struct {
	Events          []model.Event
	Dropped         int
	FilteredUnknown int
}

// Normalize transforms a raw provider batch into presentation-ready events.
//
// Each row is processed independently and in order:
//
//  1. The date (dd/mm/yyyy) and time (24h wall clock) are parsed in the
//     event's own country zone, then converted into target. Using the row's
//     own source zone means events already quoted in the target zone are
//     never double-converted.
//  2. An absent or unparseable time is not an error: the raw time value is
//     passed through unchanged and the weekday is derived from the date
//     alone.
//  3. DaysFromToday is the whole-day difference between the event date and
//     the date portion of ref in the target zone; negative values are kept.
//  4. The provider's zone column is renamed to country and the opaque id is
//     dropped. Unknown provider columns pass through untouched.
//  5. Rows whose importance is unknown are excluded from the batch entirely.
//
// A row with an unparseable date (or a country missing from the allow-list,
// which leaves it with no source zone) is dropped and counted in
// Result.Dropped.
func Normalize(raw []model.RawEvent, target *time.Location, ref time.Time) Result {
	var res Result
	res.Events = make([]model.Event, 0, len(raw))

	refDate := dateOnly(ref.In(target))

	for i, r := range raw {
		tier := model.TierFromProvider(r.Importance)
		if tier == model.TierUnknown {
			res.FilteredUnknown++
			metrics.RowsFilteredUnknown.Inc()
			continue
		}

		src, err := Zone(r.Zone)
		if err != nil {
			res.Dropped++
			metrics.RowsDropped.Inc()
			log.Error("dropping row with unresolvable country", &ParseError{Row: i, Field: "zone", Cause: err}, "zone", r.Zone)
			continue
		}

		day, err := time.ParseInLocation(DateLayout, r.Date, src)
		if err != nil {
			res.Dropped++
			metrics.RowsDropped.Inc()
			log.Error("dropping row with malformed date", &ParseError{Row: i, Field: "date", Cause: err}, "date", r.Date)
			continue
		}

		ev := model.Event{
			Country:    r.Zone,
			Name:       r.Event,
			Date:       r.Date,
			Importance: tier,
			Day:        time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, target),
			Extra:      r.Extra,
			ExtraOrder: r.ExtraOrder,
		}

		if clock, terr := time.ParseInLocation(timeLayout, r.Time, src); terr == nil {
			instant := time.Date(day.Year(), day.Month(), day.Day(),
				clock.Hour(), clock.Minute(), 0, 0, src)
			converted := instant.In(target)
			ev.Start = converted
			ev.LocalTime = converted.Format(timeLayout)
			ev.DayOfWeek = converted.Weekday().String()
		} else {
			// Passthrough: keep the raw value ("All Day", empty, ...) and
			// derive the weekday from the date alone.
			ev.LocalTime = r.Time
			ev.DayOfWeek = day.Weekday().String()
		}

		ev.DaysFromToday = wholeDays(ev.Day, refDate)

		res.Events = append(res.Events, ev)
	}

	if res.Dropped > 0 || res.FilteredUnknown > 0 {
		log.Info("normalization excluded rows",
			"total", len(raw),
			"kept", len(res.Events),
			"dropped_malformed", res.Dropped,
			"filtered_unknown", res.FilteredUnknown,
		)
	}

	return res
}

// dateOnly truncates t to midnight of its own calendar day.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// wholeDays computes a-b in whole calendar days. Both arguments are
// re-anchored to UTC so that a DST transition inside the interval cannot
// shave the difference below a full day.
func wholeDays(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(au.Sub(bu) / (24 * time.Hour))
}
