package service

import (
	"fmt"
	"time"

	"running-tracker/internal/model"
)

const (
	// DefaultWindowMinutes is the tolerance window around a reminder
	// instant. It must be at least as wide as the sweep interval so that
	// at least one poll lands inside every window.
	DefaultWindowMinutes = 10

	// DefaultLeadMinutes is used when a user has no stored preference.
	DefaultLeadMinutes = 60
)

var scheduledAtLayouts = []string{
	"2006-01-02T15:04:05",
	model.ScheduledAtLayout,
}

// ParseScheduledAt interprets a stored wall-clock value in the given IANA
// timezone and returns the absolute instant it denotes.
func ParseScheduledAt(value, timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone: %w", err)
	}
	for _, layout := range scheduledAtLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported scheduled time %q", value)
}

// ShouldSendReminder reports whether a reminder for the schedule is due right
// now. The reminder instant is the occurrence time minus the lead; the send
// window is symmetric around it and boundary-exclusive. A send is suppressed
// when lastNotifiedAt falls at or after the window start: a send recorded
// that late belongs to this occurrence, so adjacent polls inside one window
// never double-send, while a recurring schedule re-arms as soon as a new
// occurrence moves the window forward past the previous send.
//
// For a recurring schedule both today's date and tomorrow's (in the
// schedule's timezone) at the stored time of day are candidate occurrences:
// a lead longer than the occurrence's offset into its day puts the reminder
// on the previous day, so the occurrence due right now may belong to
// tomorrow. Weekly schedules only consider candidates whose weekday is in
// daysOfWeek (empty means no restriction). A one-off keeps its absolute
// date. Any parse or timezone failure returns false: never notify
// spuriously.
func ShouldSendReminder(scheduledAt, timezone, recurrenceType string, daysOfWeek []int, leadMinutes int, lastNotifiedAt *time.Time, now time.Time, windowMinutes int) bool {
	scheduled, err := ParseScheduledAt(scheduledAt, timezone)
	if err != nil {
		return false
	}
	if leadMinutes <= 0 {
		leadMinutes = DefaultLeadMinutes
	}
	if windowMinutes <= 0 {
		windowMinutes = DefaultWindowMinutes
	}

	occurrences := []time.Time{scheduled}
	if recurrenceType != "" && recurrenceType != model.RecurrenceNone {
		local := now.In(scheduled.Location())
		today := time.Date(
			local.Year(), local.Month(), local.Day(),
			scheduled.Hour(), scheduled.Minute(), scheduled.Second(), 0,
			scheduled.Location(),
		)
		occurrences = []time.Time{today, today.AddDate(0, 0, 1)}
	}

	lead := time.Duration(leadMinutes) * time.Minute
	half := time.Duration(windowMinutes) * time.Minute / 2

	for _, occurrence := range occurrences {
		if recurrenceType == model.RecurrenceWeekly && !weekdayIn(daysOfWeek, occurrence.Weekday()) {
			continue
		}
		reminderAt := occurrence.Add(-lead)
		windowStart := reminderAt.Add(-half)
		if !now.After(windowStart) || !now.Before(reminderAt.Add(half)) {
			continue
		}
		if lastNotifiedAt != nil && !lastNotifiedAt.Before(windowStart) {
			return false
		}
		return true
	}
	return false
}

// IsScheduledForToday reports whether today (in the given timezone) is one of
// the schedule's weekdays, 0=Sunday..6=Saturday. An empty set means no
// weekday restriction and is always due. An unknown timezone is never due.
func IsScheduledForToday(daysOfWeek []int, timezone string, now time.Time) bool {
	if len(daysOfWeek) == 0 {
		return true
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return false
	}
	return weekdayIn(daysOfWeek, now.In(loc).Weekday())
}

func weekdayIn(daysOfWeek []int, day time.Weekday) bool {
	if len(daysOfWeek) == 0 {
		return true
	}
	for _, d := range daysOfWeek {
		if d == int(day) {
			return true
		}
	}
	return false
}
