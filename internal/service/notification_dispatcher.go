package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fitclub/backend/config"
	"fitclub/backend/internal/model"
	"fitclub/backend/internal/repository"
)

// DeliveryOutcome 单次投递尝试的结果
type DeliveryOutcome string

const (
	OutcomeSent               DeliveryOutcome = "sent"
	OutcomeAlreadyNotified    DeliveryOutcome = "already_notified"
	OutcomeSkippedUnreachable DeliveryOutcome = "skipped_unreachable"
	OutcomeFailed             DeliveryOutcome = "failed"
)

// Delivery 一次投递尝试
// SubjectID 为报名 ID / 订阅 ID / 餐食类型，视 Kind 而定
type Delivery struct {
	Kind      model.ReminderKind `json:"kind"`
	SubjectID string             `json:"subject_id"`
	UserID    string             `json:"user_id"`
	Outcome   DeliveryOutcome    `json:"outcome"`
}

// TickReport 一次 Tick 的执行结果
type TickReport struct {
	Now        time.Time  `json:"now"`
	Deliveries []Delivery `json:"deliveries"`
}

// Count 统计某种结果的次数
func (r *TickReport) Count(outcome DeliveryOutcome) int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Outcome == outcome {
			n++
		}
	}
	return n
}

func (r *TickReport) record(kind model.ReminderKind, subjectID, userID string, outcome DeliveryOutcome) {
	r.Deliveries = append(r.Deliveries, Delivery{Kind: kind, SubjectID: subjectID, UserID: userID, Outcome: outcome})
}

// NotificationDispatcher 定时提醒调度器
//
// 每分钟执行一次 Tick，按固定顺序扫描：
//   - (a) 一小时后开始的训练
//   - (b) 此刻开始的训练（消息附带会议链接）
//   - (c) N 天后到期的有效订阅
//   - (d) 用户本地时间命中的餐食时段
//
// 同一 (对象, 提醒类型) 只发送一次：发送前检查持久化标记，发送成功后在同一事务内写入标记。
// 事务提交失败时已发出的消息无法撤回，下一次 Tick 可能重复发送。
type NotificationDispatcher interface {
	Tick(ctx context.Context) (*TickReport, error)
}

type mealSlot struct {
	kind  string
	clock string // HH:MM
}

type notificationDispatcher struct {
	repo      *repository.Repository
	gateway   MessageGateway
	clock     clockwork.Clock
	loc       *time.Location
	leadDays  int
	meals     []mealSlot
	portalURL string
	logger    *zap.Logger
}

// NewNotificationDispatcher 创建 NotificationDispatcher 实例
func NewNotificationDispatcher(
	repo *repository.Repository,
	gateway MessageGateway,
	clock clockwork.Clock,
	loc *time.Location,
	cfg *config.DispatcherConfig,
	portalURL string,
	logger *zap.Logger,
) NotificationDispatcher {
	meals := make([]mealSlot, 0, len(cfg.MealTimes))
	for kind, hhmm := range cfg.MealTimes {
		if hm, err := time.Parse(model.ClockLayout, hhmm); err == nil {
			hhmm = hm.Format(model.ClockLayout)
		}
		meals = append(meals, mealSlot{kind: kind, clock: hhmm})
	}
	sort.Slice(meals, func(i, j int) bool {
		if meals[i].clock != meals[j].clock {
			return meals[i].clock < meals[j].clock
		}
		return meals[i].kind < meals[j].kind
	})

	return &notificationDispatcher{
		repo:      repo,
		gateway:   gateway,
		clock:     clock,
		loc:       loc,
		leadDays:  cfg.RenewalLeadDay,
		meals:     meals,
		portalURL: portalURL,
		logger:    logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Tick
// ═══════════════════════════════════════════════════════════

func (d *notificationDispatcher) Tick(ctx context.Context) (*TickReport, error) {
	now := d.clock.Now().In(d.loc).Truncate(time.Minute)
	report := &TickReport{Now: now}

	err := d.repo.WithinTransaction(ctx, func(tx *repository.Repository) error {
		if err := d.scanTrainings(ctx, tx, now.Add(time.Hour), model.ReminderTrainingHour, report); err != nil {
			return fmt.Errorf("一小时提醒扫描失败: %w", err)
		}
		if err := d.scanTrainings(ctx, tx, now, model.ReminderTrainingStart, report); err != nil {
			return fmt.Errorf("开课提醒扫描失败: %w", err)
		}
		if err := d.scanRenewals(ctx, tx, now, report); err != nil {
			return fmt.Errorf("续费提醒扫描失败: %w", err)
		}
		if err := d.scanMeals(ctx, tx, now, report); err != nil {
			return fmt.Errorf("餐食提醒扫描失败: %w", err)
		}
		return nil
	})
	if err != nil {
		d.logger.Error("通知调度执行失败，本次标记已回滚",
			zap.Time("now", now),
			zap.Int("sent", report.Count(OutcomeSent)),
			zap.Error(err),
		)
		return report, err
	}

	if len(report.Deliveries) > 0 {
		d.logger.Info("通知调度完成",
			zap.Time("now", now),
			zap.Int("sent", report.Count(OutcomeSent)),
			zap.Int("already_notified", report.Count(OutcomeAlreadyNotified)),
			zap.Int("skipped_unreachable", report.Count(OutcomeSkippedUnreachable)),
			zap.Int("failed", report.Count(OutcomeFailed)),
		)
	}
	return report, nil
}

// ── (a)(b) 训练提醒 ──

func (d *notificationDispatcher) scanTrainings(ctx context.Context, tx *repository.Repository, at time.Time, kind model.ReminderKind, report *TickReport) error {
	trainings, err := tx.Training.ListStartingAt(ctx, at, at.Format(model.ClockLayout))
	if err != nil {
		return err
	}

	for i := range trainings {
		training := &trainings[i]
		signups, err := tx.Signup.ListByTraining(ctx, training.TrainingID)
		if err != nil {
			return err
		}

		for _, su := range signups {
			if notified(&su, kind) {
				report.record(kind, su.SignupID, su.UserID, OutcomeAlreadyNotified)
				continue
			}

			reachable, err := d.trainingReachable(ctx, tx, su.User)
			if err != nil {
				return err
			}
			// 不可达视同已送达，避免每分钟重试
			if !reachable {
				if err := tx.Signup.MarkNotified(ctx, su.SignupID, kind); err != nil {
					return err
				}
				report.record(kind, su.SignupID, su.UserID, OutcomeSkippedUnreachable)
				continue
			}

			msg := trainingHourMessage(training, d.portalURL)
			if kind == model.ReminderTrainingStart {
				msg = trainingStartMessage(training)
			}
			if !d.gateway.Send(ctx, su.User.Handle(), msg) {
				d.logger.Warn("训练提醒发送失败",
					zap.String("kind", string(kind)),
					zap.String("training_id", training.TrainingID),
					zap.String("user_id", su.UserID),
				)
				report.record(kind, su.SignupID, su.UserID, OutcomeFailed)
				continue
			}

			if err := tx.Signup.MarkNotified(ctx, su.SignupID, kind); err != nil {
				return err
			}
			report.record(kind, su.SignupID, su.UserID, OutcomeSent)
		}
	}
	return nil
}

func notified(su *model.TrainingSignup, kind model.ReminderKind) bool {
	if kind == model.ReminderTrainingHour {
		return su.Notified1h
	}
	return su.NotifiedStart
}

func (d *notificationDispatcher) trainingReachable(ctx context.Context, tx *repository.Repository, user *model.User) (bool, error) {
	if user == nil || user.Handle() == "" {
		return false, nil
	}
	pref, err := preferenceOf(ctx, tx, user.UserID)
	if err != nil {
		return false, err
	}
	return pref.TelegramEnabled && pref.TrainingReminders, nil
}

// preferenceOf 读取通知偏好，无记录时返回默认偏好
func preferenceOf(ctx context.Context, tx *repository.Repository, userID string) (*model.NotificationPreference, error) {
	pref, err := tx.Preference.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.DefaultPreference(userID), nil
		}
		return nil, err
	}
	return pref, nil
}

// ── (c) 续费提醒 ──

func (d *notificationDispatcher) scanRenewals(ctx context.Context, tx *repository.Repository, now time.Time, report *TickReport) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc)
	expiring := today.AddDate(0, 0, d.leadDays)

	subs, err := tx.Subscription.ListExpiringOn(ctx, expiring)
	if err != nil {
		return err
	}

	for i := range subs {
		sub := &subs[i]
		if sub.ReminderSentOn(today) {
			report.record(model.ReminderRenewal, sub.SubscriptionID, sub.UserID, OutcomeAlreadyNotified)
			continue
		}

		// 不可达用户不写标记，与餐食提醒一致
		if sub.User == nil || sub.User.Handle() == "" {
			report.record(model.ReminderRenewal, sub.SubscriptionID, sub.UserID, OutcomeSkippedUnreachable)
			continue
		}
		pref, err := preferenceOf(ctx, tx, sub.UserID)
		if err != nil {
			return err
		}
		if !pref.TelegramEnabled {
			report.record(model.ReminderRenewal, sub.SubscriptionID, sub.UserID, OutcomeSkippedUnreachable)
			continue
		}

		if !d.gateway.Send(ctx, sub.User.Handle(), renewalMessage(sub, d.leadDays, d.portalURL)) {
			d.logger.Warn("续费提醒发送失败",
				zap.String("subscription_id", sub.SubscriptionID),
				zap.String("user_id", sub.UserID),
			)
			report.record(model.ReminderRenewal, sub.SubscriptionID, sub.UserID, OutcomeFailed)
			continue
		}

		if err := tx.Subscription.MarkRenewalReminderSent(ctx, sub.SubscriptionID, today); err != nil {
			return err
		}
		report.record(model.ReminderRenewal, sub.SubscriptionID, sub.UserID, OutcomeSent)
	}
	return nil
}

// ── (d) 餐食提醒 ──

func (d *notificationDispatcher) scanMeals(ctx context.Context, tx *repository.Repository, now time.Time, report *TickReport) error {
	if len(d.meals) == 0 {
		return nil
	}

	prefs, err := tx.Preference.ListMealSubscribers(ctx)
	if err != nil {
		return err
	}

	for i := range prefs {
		pref := &prefs[i]
		local := now.In(pref.Location(d.loc))
		hhmm := local.Format(model.ClockLayout)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())

		for _, meal := range d.meals {
			if meal.clock != hhmm {
				continue
			}

			sent, err := tx.MealReminder.Exists(ctx, pref.UserID, meal.kind, day)
			if err != nil {
				return err
			}
			if sent {
				report.record(model.ReminderMeal, meal.kind, pref.UserID, OutcomeAlreadyNotified)
				continue
			}
			if pref.User == nil || pref.User.Handle() == "" {
				report.record(model.ReminderMeal, meal.kind, pref.UserID, OutcomeSkippedUnreachable)
				continue
			}

			if !d.gateway.Send(ctx, pref.User.Handle(), mealMessage(meal.kind, d.portalURL)) {
				d.logger.Warn("餐食提醒发送失败", zap.String("meal", meal.kind), zap.String("user_id", pref.UserID))
				report.record(model.ReminderMeal, meal.kind, pref.UserID, OutcomeFailed)
				continue
			}

			if _, err := tx.MealReminder.TryCreate(ctx, &model.MealReminderLog{
				UserID:   pref.UserID,
				MealType: meal.kind,
				DateSent: datatypes.Date(day),
			}); err != nil {
				return err
			}
			report.record(model.ReminderMeal, meal.kind, pref.UserID, OutcomeSent)
		}
	}
	return nil
}
