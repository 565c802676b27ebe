package dto

import "semester-planner/internal/model"

// ── 选课会话 DTO ──

// CreateSessionResponse 新建会话响应
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // 令牌有效期（秒）
}

// SessionResponse 会话当前状态
type SessionResponse struct {
	SessionID    string           `json:"session_id"`
	Version      uint64           `json:"version"`
	Sections     []model.Section  `json:"sections"`
	TempSections []model.Section  `json:"temp_sections"`
	BlockOuts    []model.BlockOut `json:"block_outs"`
	Credits      CreditSummary    `json:"credits"`
}

// CreditSummary 已选班级学分合计
type CreditSummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SectionActionResponse 添加 / 切换 / 删除班级的结果
type SectionActionResponse struct {
	CRN    int    `json:"crn"`
	Action string `json:"action"` // none | added | removed | switched
}

// RemoveCourseResponse 删除课程的结果
type RemoveCourseResponse struct {
	Removed int `json:"removed"`
}

// ConflictResponse 冲突检测结果
// 已选班级与自身冲突，Selected 供客户端区分这种情况
type ConflictResponse struct {
	Conflict bool `json:"conflict"`
	Selected bool `json:"selected,omitempty"`
}

// BlockOutRequest 添加屏蔽时段
type BlockOutRequest struct {
	Text  string `json:"text"  binding:"max=200"`
	Start string `json:"start" binding:"required"` // 2006-01-02T15:04:05
	End   string `json:"end"   binding:"required"`
}

// ImportBlockOutsResponse 日历导入结果
type ImportBlockOutsResponse struct {
	Imported  int              `json:"imported"`
	BlockOuts []model.BlockOut `json:"block_outs"`
}

// ImportBlockOutsURLRequest 从远程日历导入
type ImportBlockOutsURLRequest struct {
	URL string `json:"url" binding:"required"`
}
