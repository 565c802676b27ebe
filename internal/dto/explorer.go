package dto

import (
	"semester-planner/internal/filter"
	"semester-planner/internal/model"
	"semester-planner/internal/sorter"
)

// ── 班级浏览 DTO ──

// FilterOption 筛选候选项
type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterField 筛选字段
type FilterField struct {
	Key     string         `json:"key"`
	Label   string         `json:"label"`
	Enabled bool           `json:"enabled"`
	Value   *string        `json:"value"`
	Options []FilterOption `json:"options"`
}

// SetFilterRequest 设置筛选值
type SetFilterRequest struct {
	Value string `json:"value" binding:"required"`
}

// SetFilterEnabledRequest 切换字段启用状态
type SetFilterEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SectionPageResponse 一页班级
type SectionPageResponse struct {
	Sections []model.Section `json:"sections"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Sort     sorter.State    `json:"sort"`
}

// ExplorerStateResponse 会话浏览器状态
type ExplorerStateResponse struct {
	Fields []FilterField `json:"fields"`
	Sort   sorter.State  `json:"sort"`
}

// ToFilterFields 转换字段列表
func ToFilterFields(fields []filter.Field) []FilterField {
	out := make([]FilterField, 0, len(fields))
	for _, f := range fields {
		ff := FilterField{
			Key:     string(f.Key),
			Label:   f.Label,
			Enabled: f.Enabled,
			Options: make([]FilterOption, 0, len(f.Options)),
		}
		if f.Value != nil {
			v := f.Value.String()
			ff.Value = &v
		}
		for _, o := range f.Options {
			ff.Options = append(ff.Options, FilterOption{Value: o.Value.String(), Label: o.Label})
		}
		out = append(out, ff)
	}
	return out
}
