package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"semester-planner/internal/model"
)

// KVRepository 会话持久化键值存储接口
// 值以 JSON 保存；Get 在 key 不存在时返回 false
type KVRepository interface {
	Set(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, dest any) (bool, error)
	Delete(ctx context.Context, key string) error
}

// kvRepo KVRepository 的 GORM 实现（planner_kv 表）
type kvRepo struct {
	db *gorm.DB
}

// NewKVRepo 创建基于 PostgreSQL 的 KVRepository 实例
func NewKVRepo(db *gorm.DB) KVRepository {
	return &kvRepo{db: db}
}

func (r *kvRepo) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", key, err)
	}
	entry := model.KVEntry{Key: key, Value: string(b)}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (r *kvRepo) Get(ctx context.Context, key string, dest any) (bool, error) {
	var entry model.KVEntry
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(entry.Value), dest); err != nil {
		return false, fmt.Errorf("反序列化 %s 失败: %w", key, err)
	}
	return true, nil
}

func (r *kvRepo) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&model.KVEntry{}).Error
}
