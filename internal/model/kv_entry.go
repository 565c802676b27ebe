package model

import "time"

// KVEntry 会话持久化键值表，对应 planner_kv 表
type KVEntry struct {
	Key       string    `gorm:"type:varchar(255);primaryKey" json:"key"`
	Value     string    `gorm:"type:jsonb;not null"          json:"value"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"      json:"updated_at"`
}

// TableName 指定表名
func (KVEntry) TableName() string { return "planner_kv" }
