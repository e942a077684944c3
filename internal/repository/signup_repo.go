package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fitclub/backend/internal/model"
	pkgerrors "fitclub/backend/pkg/errors"
)

// TrainingSignupRepository 报名记录数据访问接口
type TrainingSignupRepository interface {
	TryCreate(ctx context.Context, signup *model.TrainingSignup) (WriteOutcome, error)
	Get(ctx context.Context, trainingID, userID string) (*model.TrainingSignup, error)
	CountByTraining(ctx context.Context, trainingID string) (int64, error)
	CountByTrainings(ctx context.Context, trainingIDs []string) (map[string]int64, error)
	// JoinedTrainingIDs 返回 trainingIDs 中 userID 已报名的集合
	JoinedTrainingIDs(ctx context.Context, userID string, trainingIDs []string) (map[string]bool, error)
	ListByTraining(ctx context.Context, trainingID string) ([]model.TrainingSignup, error)
	MarkNotified(ctx context.Context, signupID string, kind model.ReminderKind) error
	// Delete 删除报名，返回是否确有记录被删除
	Delete(ctx context.Context, trainingID, userID string) (bool, error)
	DeleteByTraining(ctx context.Context, trainingID string) error
}

// trainingSignupRepo TrainingSignupRepository 的 GORM 实现
type trainingSignupRepo struct {
	db *gorm.DB
}

// NewTrainingSignupRepo 创建 TrainingSignupRepository 实例
func NewTrainingSignupRepo(db *gorm.DB) TrainingSignupRepository {
	return &trainingSignupRepo{db: db}
}

// notifiedColumn 提醒类型对应的标记列
func notifiedColumn(kind model.ReminderKind) (string, error) {
	switch kind {
	case model.ReminderTrainingHour:
		return "notified_1h", nil
	case model.ReminderTrainingStart:
		return "notified_start", nil
	default:
		return "", fmt.Errorf("报名记录不支持提醒类型 %q", kind)
	}
}

// ────── Create ──────

func (r *trainingSignupRepo) TryCreate(ctx context.Context, signup *model.TrainingSignup) (WriteOutcome, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(signup)
	if result.Error != nil {
		if pkgerrors.IsUniqueViolation(result.Error) {
			return WriteConflict, nil
		}
		return WriteApplied, result.Error
	}
	if result.RowsAffected == 0 {
		return WriteConflict, nil
	}
	return WriteApplied, nil
}

// ────── Query ──────

func (r *trainingSignupRepo) Get(ctx context.Context, trainingID, userID string) (*model.TrainingSignup, error) {
	var signup model.TrainingSignup
	err := r.db.WithContext(ctx).
		Where("training_id = ? AND user_id = ?", trainingID, userID).
		First(&signup).Error
	if err != nil {
		return nil, err
	}
	return &signup, nil
}

func (r *trainingSignupRepo) CountByTraining(ctx context.Context, trainingID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TrainingSignup{}).
		Where("training_id = ?", trainingID).
		Count(&count).Error
	return count, err
}

func (r *trainingSignupRepo) CountByTrainings(ctx context.Context, trainingIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(trainingIDs))
	if len(trainingIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TrainingID string
		Total      int64
	}
	err := r.db.WithContext(ctx).Model(&model.TrainingSignup{}).
		Select("training_id, COUNT(*) AS total").
		Where("training_id IN ?", trainingIDs).
		Group("training_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.TrainingID] = row.Total
	}
	return counts, nil
}

func (r *trainingSignupRepo) JoinedTrainingIDs(ctx context.Context, userID string, trainingIDs []string) (map[string]bool, error) {
	joined := make(map[string]bool)
	if userID == "" || len(trainingIDs) == 0 {
		return joined, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&model.TrainingSignup{}).
		Where("user_id = ? AND training_id IN ?", userID, trainingIDs).
		Pluck("training_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		joined[id] = true
	}
	return joined, nil
}

func (r *trainingSignupRepo) ListByTraining(ctx context.Context, trainingID string) ([]model.TrainingSignup, error) {
	var signups []model.TrainingSignup
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("training_id = ?", trainingID).
		Order("created_at ASC").
		Find(&signups).Error
	return signups, err
}

// ────── Update ──────

func (r *trainingSignupRepo) MarkNotified(ctx context.Context, signupID string, kind model.ReminderKind) error {
	column, err := notifiedColumn(kind)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&model.TrainingSignup{}).
		Where("signup_id = ?", signupID).
		Update(column, true).Error
}

// ────── Delete ──────

func (r *trainingSignupRepo) Delete(ctx context.Context, trainingID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("training_id = ? AND user_id = ?", trainingID, userID).
		Delete(&model.TrainingSignup{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *trainingSignupRepo) DeleteByTraining(ctx context.Context, trainingID string) error {
	return r.db.WithContext(ctx).
		Where("training_id = ?", trainingID).
		Delete(&model.TrainingSignup{}).Error
}
