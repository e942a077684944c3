package model

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription 会员订阅，对应 subscriptions（门户维护，本服务只写续费提醒标记）
type Subscription struct {
	SubscriptionID        string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subscription_id"`
	UserID                string          `gorm:"type:uuid;not null"                             json:"user_id"`
	PlanName              string          `gorm:"type:varchar(100);not null;default:''"          json:"plan_name"`
	IsActive              bool            `gorm:"not null;default:true"                          json:"is_active"`
	EndDate               *datatypes.Date `gorm:"type:date"                                      json:"end_date,omitempty"`
	RenewalReminderSentOn *datatypes.Date `gorm:"type:date"                                      json:"renewal_reminder_sent_on,omitempty"`
	BaseModel

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"-"`
}

// TableName 指定表名
func (Subscription) TableName() string { return "subscriptions" }

// ReminderSentOn 当日是否已发送过续费提醒
func (s *Subscription) ReminderSentOn(day time.Time) bool {
	if s.RenewalReminderSentOn == nil {
		return false
	}
	return time.Time(*s.RenewalReminderSentOn).Format(DateLayout) == day.Format(DateLayout)
}
