package repository

import (
	"context"

	"gorm.io/gorm"

	"fitclub/backend/internal/model"
)

// NotificationPreferenceRepository 通知偏好数据访问接口
type NotificationPreferenceRepository interface {
	// GetByUserID 无记录时返回 gorm.ErrRecordNotFound，由调用方套用默认偏好
	GetByUserID(ctx context.Context, userID string) (*model.NotificationPreference, error)
	// ListMealSubscribers 开启了 Telegram 与餐食提醒、且已绑定 Telegram 的用户偏好（含用户信息）
	ListMealSubscribers(ctx context.Context) ([]model.NotificationPreference, error)
}

// notificationPreferenceRepo NotificationPreferenceRepository 的 GORM 实现
type notificationPreferenceRepo struct {
	db *gorm.DB
}

// NewNotificationPreferenceRepo 创建 NotificationPreferenceRepository 实例
func NewNotificationPreferenceRepo(db *gorm.DB) NotificationPreferenceRepository {
	return &notificationPreferenceRepo{db: db}
}

func (r *notificationPreferenceRepo) GetByUserID(ctx context.Context, userID string) (*model.NotificationPreference, error) {
	var pref model.NotificationPreference
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&pref).Error
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (r *notificationPreferenceRepo) ListMealSubscribers(ctx context.Context) ([]model.NotificationPreference, error) {
	var prefs []model.NotificationPreference
	err := r.db.WithContext(ctx).
		Joins("User").
		Where("notification_preferences.telegram_enabled = ? AND notification_preferences.meal_reminders = ?", true, true).
		Where(`"User".telegram_chat_id IS NOT NULL AND "User".telegram_chat_id <> ''`).
		Order("notification_preferences.user_id ASC").
		Find(&prefs).Error
	return prefs, err
}
