package notify

import (
	"context"
	"fmt"
	"strings"

	"ecocal/internal/model"
)

// Notifier delivers one reminder message for one event. Implementations are
// task-scoped: a failed delivery affects nothing but that task.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event, recipients []string) error
	Name() string
}

// NotifyError is a task-scoped delivery failure (transport unreachable,
// auth rejected). The reminder is lost; other pending tasks are unaffected
// and there is no retry.
type NotifyError struct {
	Cause error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("sending reminder: %v", e.Cause)
}

func (e *NotifyError) Unwrap() error { return e.Cause }

// Subject renders the reminder subject line for an event.
func Subject(ev model.Event) string {
	return fmt.Sprintf("Reminder: Upcoming event '%s'", ev.Name)
}

// Body renders the plain-text reminder body.
func Body(ev model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Upcoming economic event: %s\n", ev.Name)
	fmt.Fprintf(&b, "Date: %s (%s)\n", ev.Date, ev.DayOfWeek)
	fmt.Fprintf(&b, "Country: %s\n", ev.Country)
	if ev.LocalTime != "" {
		fmt.Fprintf(&b, "Time: %s\n", ev.LocalTime)
	}
	return b.String()
}

// SplitRecipients parses the operator's comma-separated recipient list,
// trimming whitespace and dropping empty entries.
func SplitRecipients(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
