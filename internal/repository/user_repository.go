package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"running-tracker/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByLineUserID(ctx context.Context, lineUserID string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("line_user_id = ?", lineUserID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListNotifiable returns users eligible for the reminder sweep: LINE linked
// and notifications switched on. Queried fresh on every sweep.
func (r *UserRepository) ListNotifiable(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).
		Where("line_is_connected = ? AND notify_enabled = ?", true, true).
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ConnectLine attaches a LINE identity to the user. Existing notification
// preferences are kept; a zero lead time falls back to the default so a
// freshly linked account gets reminders without further setup.
func (r *UserRepository) ConnectLine(ctx context.Context, userID, lineUserID, displayName, pictureURL string, now time.Time) (*model.User, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	user.Line = model.LineLink{
		UserID:      lineUserID,
		DisplayName: displayName,
		PictureURL:  pictureURL,
		IsConnected: true,
		ConnectedAt: &now,
	}
	if user.Notifications.ReminderMinutesBefore <= 0 {
		user.Notifications.ReminderMinutesBefore = 60
		user.Notifications.Enabled = true
	}

	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("connect line: %w", err)
	}
	return user, nil
}

// DisconnectLine removes the LINE identity from the user.
func (r *UserRepository) DisconnectLine(ctx context.Context, userID string) error {
	updates := map[string]interface{}{
		"line_user_id":                "",
		"line_display_name":           "",
		"line_picture_url":            "",
		"line_is_connected":           false,
		"line_connected_at":           nil,
		"line_last_notification_sent": nil,
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("disconnect line: %w", err)
	}
	return nil
}

// SetLastNotificationSent updates the denormalized marker shown in the UI.
func (r *UserRepository) SetLastNotificationSent(ctx context.Context, userID string, sentAt time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("line_last_notification_sent", sentAt).Error; err != nil {
		return fmt.Errorf("set last notification sent: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePreferences(ctx context.Context, userID string, prefs model.NotificationPreferences) error {
	updates := map[string]interface{}{
		"notify_enabled":                      prefs.Enabled,
		"notify_reminder_minutes_before":      prefs.ReminderMinutesBefore,
		"notify_notify_on_schedule_created":   prefs.NotifyOnScheduleCreated,
		"notify_notify_on_schedule_completed": prefs.NotifyOnScheduleCompleted,
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return nil
}
