package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"running-tracker/internal/model"
)

// LinkingRepository stores linking codes and LINE users waiting to be linked.
type LinkingRepository struct {
	db *gorm.DB
}

func NewLinkingRepository(db *gorm.DB) *LinkingRepository {
	return &LinkingRepository{db: db}
}

func (r *LinkingRepository) CreateCode(ctx context.Context, code *model.LinkingCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return fmt.Errorf("create linking code: %w", err)
	}
	return nil
}

func (r *LinkingRepository) FindCode(ctx context.Context, code string) (*model.LinkingCode, error) {
	var lc model.LinkingCode
	if err := r.db.WithContext(ctx).First(&lc, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &lc, nil
}

func (r *LinkingRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.LinkingCode{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count linking codes: %w", err)
	}
	return count > 0, nil
}

// DeleteUnusedByUser invalidates any outstanding code for the user, keeping
// the one-unused-code-per-user invariant.
func (r *LinkingRepository) DeleteUnusedByUser(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND used = ?", userID, false).
		Delete(&model.LinkingCode{}).Error; err != nil {
		return fmt.Errorf("delete unused codes: %w", err)
	}
	return nil
}

// MarkUsed claims the code for the given LINE user. The used flag doubles as
// the single-use guard: the conditional update makes redemption atomic, and a
// false return means someone else already claimed it.
func (r *LinkingRepository) MarkUsed(ctx context.Context, code, lineUserID string, usedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.LinkingCode{}).
		Where("code = ? AND used = ?", code, false).
		Updates(map[string]interface{}{
			"used":                true,
			"used_at":             usedAt,
			"linked_line_user_id": lineUserID,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark code used: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ReleaseCode undoes a claim so a redemption that failed after MarkUsed can
// be retried with the same code.
func (r *LinkingRepository) ReleaseCode(ctx context.Context, code string) error {
	if err := r.db.WithContext(ctx).Model(&model.LinkingCode{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"used":                false,
			"used_at":             nil,
			"linked_line_user_id": "",
		}).Error; err != nil {
		return fmt.Errorf("release code: %w", err)
	}
	return nil
}

func (r *LinkingRepository) DeleteCode(ctx context.Context, code string) error {
	if err := r.db.WithContext(ctx).Delete(&model.LinkingCode{}, "code = ?", code).Error; err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}

// DeleteExpired removes every code past its expiry, used or not.
func (r *LinkingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&model.LinkingCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired codes: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *LinkingRepository) SavePending(ctx context.Context, pending *model.PendingLineUser) error {
	if err := r.db.WithContext(ctx).Save(pending).Error; err != nil {
		return fmt.Errorf("save pending line user: %w", err)
	}
	return nil
}

func (r *LinkingRepository) DeletePending(ctx context.Context, lineUserID string) error {
	if err := r.db.WithContext(ctx).
		Delete(&model.PendingLineUser{}, "line_user_id = ?", lineUserID).Error; err != nil {
		return fmt.Errorf("delete pending line user: %w", err)
	}
	return nil
}
