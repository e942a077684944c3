package model

// 角色
const (
	RoleMember  = "member"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// User 门户用户目录，对应 users（本服务只读）
type User struct {
	UserID         string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name           string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Email          string  `gorm:"type:varchar(255);not null"                     json:"email"`
	Role           string  `gorm:"type:varchar(20);not null;default:'member'"     json:"role"`
	IsTrainer      bool    `gorm:"not null;default:false"                         json:"is_trainer"`
	TelegramChatID *string `gorm:"type:varchar(50)"                               json:"-"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// CanTrain 是否具备开课资格
func (u *User) CanTrain() bool {
	return u.IsTrainer || u.Role == RoleTrainer || u.Role == RoleAdmin
}

// Handle 返回 Telegram 接收方标识，未绑定时为空串
func (u *User) Handle() string {
	if u.TelegramChatID == nil {
		return ""
	}
	return *u.TelegramChatID
}
