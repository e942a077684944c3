package dto

// ── 调度模块响应 ──

// DeliveryResponse 单次投递尝试结果
type DeliveryResponse struct {
	Kind      string `json:"kind"`
	SubjectID string `json:"subject_id"`
	UserID    string `json:"user_id"`
	Outcome   string `json:"outcome"`
}

// TickReportResponse 一次调度执行的结果汇总
type TickReportResponse struct {
	Now        string             `json:"now"`
	Counts     map[string]int     `json:"counts"`
	Deliveries []DeliveryResponse `json:"deliveries"`
}
