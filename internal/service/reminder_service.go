package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"running-tracker/internal/model"
	"running-tracker/internal/repository"
)

// Sender pushes a text message to a LINE recipient. Implementations must
// bound the call with a timeout so one slow send cannot stall a sweep.
type Sender interface {
	Push(ctx context.Context, lineUserID, text string) error
}

// Outcome classifies what happened to one schedule during a sweep.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeSkippedNotToday
	OutcomeSkippedNotDue
	OutcomeSkippedInvalid
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeSkippedNotToday:
		return "skipped_not_today"
	case OutcomeSkippedNotDue:
		return "skipped_not_due"
	case OutcomeSkippedInvalid:
		return "skipped_invalid"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UserSendCount pairs a user with the number of reminders they received.
type UserSendCount struct {
	UserID string
	Sent   int
}

// Summary aggregates one sweep.
type Summary struct {
	UsersChecked  int
	RemindersSent int
	PerUser       []UserSendCount
}

// ReminderService runs the periodic reminder sweep: it enumerates notifiable
// users, decides per active schedule whether a reminder is due, and pushes it.
type ReminderService struct {
	users         *repository.UserRepository
	schedules     *repository.ScheduleRepository
	sender        Sender
	windowMinutes int
	log           *zap.Logger
}

func NewReminderService(users *repository.UserRepository, schedules *repository.ScheduleRepository, sender Sender, windowMinutes int, log *zap.Logger) *ReminderService {
	if windowMinutes <= 0 {
		windowMinutes = DefaultWindowMinutes
	}
	return &ReminderService{
		users:         users,
		schedules:     schedules,
		sender:        sender,
		windowMinutes: windowMinutes,
		log:           log,
	}
}

// Run performs one sweep. Every user and every schedule is isolated: a
// failure is logged and counted, never propagated, so one broken record
// cannot block the rest of the batch.
//
// Known limitation: lastNotifiedAt is written only after a successful push,
// so a crash between the two can repeat that send on the next poll while the
// window is still open. The duplicate risk is bounded by the window width.
func (s *ReminderService) Run(ctx context.Context, now time.Time) Summary {
	var summary Summary

	users, err := s.users.ListNotifiable(ctx)
	if err != nil {
		s.log.Error("list notifiable users", zap.Error(err))
		return summary
	}
	summary.UsersChecked = len(users)

	for i := range users {
		user := &users[i]
		sent := s.processUser(ctx, user, now)
		if sent > 0 {
			summary.RemindersSent += sent
			summary.PerUser = append(summary.PerUser, UserSendCount{UserID: user.ID, Sent: sent})
		}
	}

	s.log.Info("reminder sweep finished",
		zap.Int("users_checked", summary.UsersChecked),
		zap.Int("reminders_sent", summary.RemindersSent),
	)
	return summary
}

func (s *ReminderService) processUser(ctx context.Context, user *model.User, now time.Time) int {
	if user.Line.UserID == "" {
		s.log.Debug("user has no LINE recipient", zap.String("user_id", user.ID))
		return 0
	}

	lead := user.Notifications.ReminderMinutesBefore
	if lead <= 0 {
		lead = DefaultLeadMinutes
	}

	runs, err := s.schedules.ListActive(ctx, user.ID)
	if err != nil {
		s.log.Error("list active schedules", zap.String("user_id", user.ID), zap.Error(err))
		return 0
	}

	sent := 0
	for i := range runs {
		run := &runs[i]
		outcome := s.processSchedule(ctx, user, run, lead, now)
		if outcome == OutcomeSent {
			sent++
		}
		if outcome != OutcomeSkippedNotDue && outcome != OutcomeSkippedNotToday {
			s.log.Debug("schedule processed",
				zap.String("schedule_id", run.ID),
				zap.String("outcome", outcome.String()),
			)
		}
	}
	return sent
}

func (s *ReminderService) processSchedule(ctx context.Context, user *model.User, run *model.ScheduledRun, leadMinutes int, now time.Time) Outcome {
	if _, err := ParseScheduledAt(run.ScheduledAt, run.Timezone); err != nil {
		s.log.Warn("schedule has invalid time data",
			zap.String("schedule_id", run.ID), zap.Error(err))
		return OutcomeSkippedInvalid
	}

	if !ShouldSendReminder(run.ScheduledAt, run.Timezone, run.RecurrenceType, run.Weekdays(), leadMinutes, run.LastNotifiedAt, now, s.windowMinutes) {
		// The evaluator applies the weekday gate per candidate occurrence;
		// the today check here only labels the skip for the debug log.
		if run.RecurrenceType == model.RecurrenceWeekly && !IsScheduledForToday(run.Weekdays(), run.Timezone, now) {
			return OutcomeSkippedNotToday
		}
		return OutcomeSkippedNotDue
	}

	text := buildReminderMessage(run, leadMinutes)
	if err := s.sender.Push(ctx, user.Line.UserID, text); err != nil {
		s.log.Warn("push reminder",
			zap.String("schedule_id", run.ID),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return OutcomeFailed
	}

	if err := s.schedules.SetLastNotified(ctx, run.ID, now); err != nil {
		s.log.Error("write back lastNotifiedAt", zap.String("schedule_id", run.ID), zap.Error(err))
	}
	if err := s.users.SetLastNotificationSent(ctx, user.ID, now); err != nil {
		s.log.Error("write back lastNotificationSent", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.log.Info("reminder sent",
		zap.String("schedule_id", run.ID),
		zap.String("user_id", user.ID),
	)
	return OutcomeSent
}

// buildReminderMessage renders the push text: title, optional description,
// the lead-time line and optional goal block.
func buildReminderMessage(run *model.ScheduledRun, leadMinutes int) string {
	var b strings.Builder

	b.WriteString("🏃 ランニングのリマインダー\n\n")
	fmt.Fprintf(&b, "【%s】\n", run.Title)
	if run.Description != "" {
		b.WriteString(run.Description)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\n⏰ %d分後にスタート予定です！\n", leadMinutes)

	if run.Goal.DistanceKm > 0 || run.Goal.PaceMinKm > 0 || run.Goal.DurationMin > 0 {
		b.WriteString("\n【目標】\n")
		if run.Goal.DistanceKm > 0 {
			fmt.Fprintf(&b, "📏 距離: %gkm\n", run.Goal.DistanceKm)
		}
		if run.Goal.PaceMinKm > 0 {
			fmt.Fprintf(&b, "⚡ ペース: %g分/km\n", run.Goal.PaceMinKm)
		}
		if run.Goal.DurationMin > 0 {
			fmt.Fprintf(&b, "⏱️ 時間: %d分\n", run.Goal.DurationMin)
		}
	}

	b.WriteString("\n準備を始めましょう！💪")
	return b.String()
}
