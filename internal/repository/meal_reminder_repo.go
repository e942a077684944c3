package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fitclub/backend/internal/model"
	pkgerrors "fitclub/backend/pkg/errors"
)

// MealReminderRepository 餐食提醒发送记录访问接口
type MealReminderRepository interface {
	Exists(ctx context.Context, userID, mealType string, day time.Time) (bool, error)
	TryCreate(ctx context.Context, log *model.MealReminderLog) (WriteOutcome, error)
}

// mealReminderRepo MealReminderRepository 的 GORM 实现
type mealReminderRepo struct {
	db *gorm.DB
}

// NewMealReminderRepo 创建 MealReminderRepository 实例
func NewMealReminderRepo(db *gorm.DB) MealReminderRepository {
	return &mealReminderRepo{db: db}
}

func (r *mealReminderRepo) Exists(ctx context.Context, userID, mealType string, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.MealReminderLog{}).
		Where("user_id = ? AND meal_type = ? AND date_sent = ?", userID, mealType, datatypes.Date(day)).
		Count(&count).Error
	return count > 0, err
}

func (r *mealReminderRepo) TryCreate(ctx context.Context, log *model.MealReminderLog) (WriteOutcome, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(log)
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
