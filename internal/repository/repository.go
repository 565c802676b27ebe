package repository

import (
	"gorm.io/gorm"

	"semester-planner/pkg/redis"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	KV KVRepository
}

// NewRepository 创建基于 PostgreSQL 的 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{KV: NewKVRepo(db)}
}

// NewRedisRepository 创建基于 Redis 的 Repository 聚合
func NewRedisRepository(c *redis.Client) *Repository {
	return &Repository{KV: c}
}

// NewMemoryRepository 创建进程内 Repository 聚合
func NewMemoryRepository() *Repository {
	return &Repository{KV: NewMemoryKVRepo()}
}
