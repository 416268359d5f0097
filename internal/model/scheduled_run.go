package model

import (
	"strconv"
	"strings"
	"time"
)

// Recurrence types for a scheduled run. Anything other than "none" repeats,
// and its reminder time is projected onto the current day in the schedule's
// timezone; "weekly" additionally restricts eligible weekdays.
const (
	RecurrenceNone   = "none"
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
	RecurrenceCustom = "custom"
)

// ScheduledAtLayout is the stored wall-clock format of ScheduledAt. The value
// carries no offset; Timezone says how to interpret it.
const ScheduledAtLayout = "2006-01-02T15:04"

// RunGoal holds optional targets shown in the reminder message.
type RunGoal struct {
	DistanceKm  float64 // 0 = unset
	PaceMinKm   float64
	DurationMin int
}

// ScheduledRun is one user's planned run. The reminder sweep only ever
// mutates LastNotifiedAt; everything else belongs to the user.
type ScheduledRun struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"index"`
	Title       string
	Description string

	ScheduledAt string // local wall clock, ScheduledAtLayout
	Timezone    string // IANA name, e.g. "Asia/Tokyo"

	RecurrenceType string `gorm:"default:none"`
	DaysOfWeek     string // comma-separated 0-6 (0=Sunday), weekly only

	Goal RunGoal `gorm:"embedded;embeddedPrefix:goal_"`

	LastNotifiedAt *time.Time
	IsActive       bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Weekdays decodes DaysOfWeek, dropping anything that is not 0-6.
func (r *ScheduledRun) Weekdays() []int {
	if r.DaysOfWeek == "" {
		return nil
	}
	var days []int
	for _, part := range strings.Split(r.DaysOfWeek, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 0 || d > 6 {
			continue
		}
		days = append(days, d)
	}
	return days
}

// EncodeWeekdays renders a weekday set into the stored form.
func EncodeWeekdays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}
