package repository

import (
	"context"

	"gorm.io/gorm"
)

// WriteOutcome 带唯一约束的写入结果
// 唯一冲突不作为错误返回，由调用方决定语义（冲突报错或幂等成功）
type WriteOutcome int

const (
	WriteApplied WriteOutcome = iota
	WriteConflict
)

func (o WriteOutcome) String() string {
	if o == WriteConflict {
		return "conflict"
	}
	return "applied"
}

// Transactor 事务执行器
// fn 收到的 Repository 绑定在同一事务上；fn 返回错误时整体回滚
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(tx *Repository) error) error
}

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Training     TrainingRepository
	Signup       TrainingSignupRepository
	User         UserRepository
	Preference   NotificationPreferenceRepository
	Subscription SubscriptionRepository
	MealReminder MealReminderRepository

	// Tx 为空时 WithinTransaction 直接在当前 Repository 上执行（单元测试场景）
	Tx Transactor
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Training:     NewTrainingRepo(db),
		Signup:       NewTrainingSignupRepo(db),
		User:         NewUserRepo(db),
		Preference:   NewNotificationPreferenceRepo(db),
		Subscription: NewSubscriptionRepo(db),
		MealReminder: NewMealReminderRepo(db),
		Tx:           &gormTransactor{db: db},
	}
}

// WithinTransaction 在事务中执行 fn
func (r *Repository) WithinTransaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.Tx == nil {
		return fn(r)
	}
	return r.Tx.WithinTransaction(ctx, fn)
}

// gormTransactor Transactor 的 GORM 实现
// 嵌套调用时 GORM 使用 SAVEPOINT
type gormTransactor struct {
	db *gorm.DB
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(tx *Repository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
