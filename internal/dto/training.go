package dto

// ── 训练模块 DTO ──

// CreateTrainingRequest 创建训练请求
type CreateTrainingRequest struct {
	Title       string `json:"title"        binding:"omitempty,max=200"`
	Description string `json:"description"  binding:"omitempty,max=2000"`
	Date        string `json:"date"         binding:"required"` // "2025-03-10"
	Start       string `json:"start"        binding:"required"` // "18:00"
	End         string `json:"end"          binding:"required"` // "19:00"
	MeetingLink string `json:"meeting_link" binding:"required,max=500"`
	Capacity    *int   `json:"capacity"     binding:"omitempty,min=0"`
	IsPublic    *bool  `json:"is_public"`
}

// UpdateTrainingRequest 更新训练请求（仅更新非空字段）
type UpdateTrainingRequest struct {
	Title       *string `json:"title"        binding:"omitempty,max=200"`
	Description *string `json:"description"  binding:"omitempty,max=2000"`
	Date        *string `json:"date"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	MeetingLink *string `json:"meeting_link" binding:"omitempty,max=500"`
	Capacity    *int    `json:"capacity"     binding:"omitempty,min=0"`
	IsPublic    *bool   `json:"is_public"`
}

// TrainingListRequest 训练列表查询参数
type TrainingListRequest struct {
	Month string `form:"month"` // "2025-03"，为空时取俱乐部时区的当月
}

// TrainingResponse 面向某个查看者序列化的训练信息
// Link 仅在 CanOpenLink 为 true 时出现
type TrainingResponse struct {
	ID               string  `json:"id"`
	TrainerID        string  `json:"trainer_id"`
	TrainerName      string  `json:"trainer_name"`
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	Date             string  `json:"date"`
	Start            string  `json:"start"`
	End              string  `json:"end"`
	Capacity         int     `json:"capacity"`
	IsPublic         bool    `json:"is_public"`
	ViewerIsOwner    bool    `json:"viewer_is_owner"`
	ViewerIsSignedUp bool    `json:"viewer_is_signed_up"`
	IsPast           bool    `json:"is_past"`
	SpotsLeft        int     `json:"spots_left"`
	LinkVisibleAt    string  `json:"link_visible_at"`
	CanOpenLink      bool    `json:"can_open_link"`
	Link             *string `json:"link,omitempty"`
}

// ParticipantResponse 训练参与者（仅开课教练可见）
type ParticipantResponse struct {
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	JoinedAt      string `json:"joined_at"`
	Notified1h    bool   `json:"notified_1h"`
	NotifiedStart bool   `json:"notified_start"`
}
