package dto

import "semester-planner/internal/catalog"

// ── 课程目录 DTO ──

// CatalogMetaResponse 数据集技术信息
type CatalogMetaResponse struct {
	Ready     bool           `json:"ready"`
	Source    string         `json:"source,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"` // RFC 3339
	Semester  string         `json:"semester,omitempty"`
	Year      int            `json:"year,omitempty"`
	Stats     *catalog.Stats `json:"stats,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RandomSectionRequest 随机班级查询，可附带与浏览器相同的筛选参数
type RandomSectionRequest struct {
	Subject    string `form:"subject"`
	Course     string `form:"course"`
	Title      string `form:"title"`
	Instructor string `form:"instructor"`
	Tags       string `form:"tags"`
	Credits    string `form:"cr"`
	Session    string `form:"session"`
}
