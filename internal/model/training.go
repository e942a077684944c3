package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// DefaultCapacity 未指定容量时的默认名额
const DefaultCapacity = 10

// Training 训练课时表，对应 trainings
// 日期与起止时刻均为俱乐部时区的墙上时间；(date, start_time) 全局唯一
type Training struct {
	TrainingID  string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"training_id"`
	TrainerID   string         `gorm:"type:uuid;not null"                             json:"trainer_id"`
	Title       string         `gorm:"type:varchar(200);not null"                     json:"title"`
	Description string         `gorm:"type:text;not null;default:''"                  json:"description"`
	Date        datatypes.Date `gorm:"type:date;not null"                             json:"date"`
	StartTime   string         `gorm:"type:varchar(5);not null"                       json:"start_time"` // HH:MM
	EndTime     string         `gorm:"type:varchar(5);not null"                       json:"end_time"`   // HH:MM
	MeetingLink string         `gorm:"type:varchar(500);not null"                     json:"-"`
	Capacity    int            `gorm:"not null;default:10"                            json:"capacity"`
	IsPublic    bool           `gorm:"not null;default:true"                          json:"is_public"`
	BaseModel

	// 关联
	Trainer *User `gorm:"foreignKey:TrainerID;references:UserID" json:"trainer,omitempty"`
}

// TableName 指定表名
func (Training) TableName() string { return "trainings" }

// Day 返回 YYYY-MM-DD 形式的日期
func (t *Training) Day() string {
	return time.Time(t.Date).Format(DateLayout)
}

// StartsAt 返回开始时刻在 loc 中的绝对时间
func (t *Training) StartsAt(loc *time.Location) (time.Time, error) {
	return CombineDateClock(time.Time(t.Date), t.StartTime, loc)
}

// EndsAt 返回结束时刻在 loc 中的绝对时间
func (t *Training) EndsAt(loc *time.Location) (time.Time, error) {
	return CombineDateClock(time.Time(t.Date), t.EndTime, loc)
}

// CombineDateClock 将日期与 HH:MM 组合为 loc 中的时间点
func CombineDateClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	hm, err := time.Parse(ClockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的时刻 %q: %w", clock, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, loc), nil
}

// TrainingSignup 训练报名表，对应 training_signups
// (training_id, user_id) 唯一；notified_* 标记一旦置位不再回退
type TrainingSignup struct {
	SignupID      string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"signup_id"`
	TrainingID    string    `gorm:"type:uuid;not null"                             json:"training_id"`
	UserID        string    `gorm:"type:uuid;not null"                             json:"user_id"`
	Notified1h    bool      `gorm:"column:notified_1h;not null;default:false"      json:"notified_1h"`
	NotifiedStart bool      `gorm:"not null;default:false"                         json:"notified_start"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (TrainingSignup) TableName() string { return "training_signups" }
