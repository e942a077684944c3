package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fitclub/backend/internal/model"
)

// SubscriptionRepository 会员订阅数据访问接口
type SubscriptionRepository interface {
	// ListExpiringOn 返回 end_date 为 day 的有效订阅（含用户信息）
	ListExpiringOn(ctx context.Context, day time.Time) ([]model.Subscription, error)
	MarkRenewalReminderSent(ctx context.Context, subscriptionID string, day time.Time) error
}

// subscriptionRepo SubscriptionRepository 的 GORM 实现
type subscriptionRepo struct {
	db *gorm.DB
}

// NewSubscriptionRepo 创建 SubscriptionRepository 实例
func NewSubscriptionRepo(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) ListExpiringOn(ctx context.Context, day time.Time) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("is_active = ? AND end_date = ?", true, datatypes.Date(day)).
		Order("subscription_id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepo) MarkRenewalReminderSent(ctx context.Context, subscriptionID string, day time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("subscription_id = ?", subscriptionID).
		Update("renewal_reminder_sent_on", datatypes.Date(day)).Error
}
