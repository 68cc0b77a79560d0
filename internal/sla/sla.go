// Package sla computes business-day deadlines and elapsed-time SLA labels.
// Everything here is pure so it can be unit-tested away from persistence.
package sla

import (
	"fmt"
	"time"

	"github.com/findesk/findesk/internal/domain"
)

// BusinessDays maps a priority to its resolution window in business days.
// Unknown priorities map to zero, leaving the due date at the opening instant.
func BusinessDays(p domain.TicketPriority) int {
	switch p {
	case domain.TicketPriorityLow:
		return 7
	case domain.TicketPriorityMedium:
		return 5
	case domain.TicketPriorityHigh:
		return 2
	case domain.TicketPriorityUrgent:
		return 1
	}
	return 0
}

// DueDate advances openedAt by the priority's business-day count, one calendar
// day at a time. A day is consumed only when the advanced date lands on a
// weekday, which skips Saturdays and Sundays without multi-day jumps.
func DueDate(openedAt time.Time, p domain.TicketPriority) time.Time {
	remaining := BusinessDays(p)
	due := openedAt
	for remaining > 0 {
		due = due.AddDate(0, 0, 1)
		if wd := due.Weekday(); wd != time.Saturday && wd != time.Sunday {
			remaining--
		}
	}
	return due
}

// Format selects how an elapsed SLA duration is rendered.
type Format string

const (
	// FormatCoarse reports the coarsest applicable unit: minutes under an
	// hour, hours under a day, whole days otherwise.
	FormatCoarse Format = "coarse"
	// FormatHoursMinutes reports hours and minutes jointly.
	FormatHoursMinutes Format = "hours_minutes"
)

// ParseFormat returns the format named by s, defaulting to FormatCoarse.
func ParseFormat(s string) Format {
	if Format(s) == FormatHoursMinutes {
		return FormatHoursMinutes
	}
	return FormatCoarse
}

// Formatter renders elapsed wall-clock SLA durations.
type Formatter struct {
	Format Format
}

// Duration returns the elapsed wall clock between opening and resolution,
// clamped at zero.
func (Formatter) Duration(openedAt, resolvedAt time.Time) time.Duration {
	d := resolvedAt.Sub(openedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Elapsed renders the SLA between the two instants per the configured format.
func (f Formatter) Elapsed(openedAt, resolvedAt time.Time) string {
	d := f.Duration(openedAt, resolvedAt)
	if f.Format == FormatHoursMinutes {
		hours := int(d / time.Hour)
		minutes := int(d/time.Minute) % 60
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
	switch {
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
