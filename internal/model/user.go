package model

import "time"

// ReminderLeadOptions are the allowed values for ReminderMinutesBefore.
var ReminderLeadOptions = []int{15, 30, 60, 120, 180, 1440}

// LineLink maps an account to its LINE recipient identity. An account with
// IsConnected false (or a blank UserID) never receives push messages.
type LineLink struct {
	UserID               string `gorm:"index"`
	DisplayName          string
	PictureURL           string
	IsConnected          bool `gorm:"default:false"`
	ConnectedAt          *time.Time
	LastNotificationSent *time.Time // denormalized, display only
}

// NotificationPreferences controls when and whether reminders are pushed.
type NotificationPreferences struct {
	Enabled                   bool `gorm:"default:true"`
	ReminderMinutesBefore     int  `gorm:"default:60"`
	NotifyOnScheduleCreated   bool `gorm:"default:true"`
	NotifyOnScheduleCompleted bool `gorm:"default:false"`
}

// User stores account metadata together with the LINE link and notification
// settings the reminder sweep filters on.
type User struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"uniqueIndex"`
	DisplayName   string
	Line          LineLink                `gorm:"embedded;embeddedPrefix:line_"`
	Notifications NotificationPreferences `gorm:"embedded;embeddedPrefix:notify_"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ValidReminderLead reports whether minutes is one of the allowed lead times.
func ValidReminderLead(minutes int) bool {
	for _, opt := range ReminderLeadOptions {
		if minutes == opt {
			return true
		}
	}
	return false
}
