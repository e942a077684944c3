package model

import (
	"time"

	"gorm.io/datatypes"
)

// ReminderKind 提醒类型
type ReminderKind string

const (
	ReminderTrainingHour  ReminderKind = "training_1h"
	ReminderTrainingStart ReminderKind = "training_start"
	ReminderRenewal       ReminderKind = "subscription_renewal"
	ReminderMeal          ReminderKind = "meal"
)

// NotificationPreference 通知偏好表，对应 notification_preferences（与 users 1:1）
type NotificationPreference struct {
	UserID            string  `gorm:"type:uuid;primaryKey"   json:"user_id"`
	TelegramEnabled   bool    `gorm:"not null;default:true"  json:"telegram_enabled"`
	TrainingReminders bool    `gorm:"not null;default:true"  json:"training_reminders"`
	MealReminders     bool    `gorm:"not null;default:false" json:"meal_reminders"`
	MealTimezone      *string `gorm:"type:varchar(64)"       json:"meal_timezone,omitempty"`
	BaseModel

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"-"`
}

// TableName 指定表名
func (NotificationPreference) TableName() string { return "notification_preferences" }

// DefaultPreference 用户没有偏好记录时采用的默认值
func DefaultPreference(userID string) *NotificationPreference {
	return &NotificationPreference{
		UserID:            userID,
		TelegramEnabled:   true,
		TrainingReminders: true,
	}
}

// Location 用户的餐食提醒时区，未设置或无效时回落到 fallback
func (p *NotificationPreference) Location(fallback *time.Location) *time.Location {
	if p.MealTimezone == nil || *p.MealTimezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(*p.MealTimezone)
	if err != nil {
		return fallback
	}
	return loc
}

// MealReminderLog 餐食提醒发送记录，对应 meal_reminder_logs
// (user_id, meal_type, date_sent) 唯一，只追加
type MealReminderLog struct {
	LogID     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"log_id"`
	UserID    string         `gorm:"type:uuid;not null"                             json:"user_id"`
	MealType  string         `gorm:"type:varchar(20);not null"                      json:"meal_type"`
	DateSent  datatypes.Date `gorm:"type:date;not null"                             json:"date_sent"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (MealReminderLog) TableName() string { return "meal_reminder_logs" }
