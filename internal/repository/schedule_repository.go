package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"running-tracker/internal/model"
)

// ScheduleRepository handles CRUD for scheduled runs.
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, run *model.ScheduledRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) ListByUser(ctx context.Context, userID string) ([]model.ScheduledRun, error) {
	var runs []model.ScheduledRun
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("scheduled_at ASC").
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ListActive returns the user's schedules eligible for reminders.
func (r *ScheduleRepository) ListActive(ctx context.Context, userID string) ([]model.ScheduledRun, error) {
	var runs []model.ScheduledRun
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *ScheduleRepository) FindByID(ctx context.Context, userID, id string) (*model.ScheduledRun, error) {
	var run model.ScheduledRun
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *ScheduleRepository) Save(ctx context.Context, run *model.ScheduledRun) error {
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

// SetLastNotified records a successful reminder send. This is the only field
// the sweep writes on a schedule.
func (r *ScheduleRepository) SetLastNotified(ctx context.Context, id string, sentAt time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.ScheduledRun{}).
		Where("id = ?", id).
		Update("last_notified_at", sentAt).Error; err != nil {
		return fmt.Errorf("set last notified: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, userID, id string) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&model.ScheduledRun{}).Error; err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
