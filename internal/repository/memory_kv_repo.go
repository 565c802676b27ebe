package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// memoryKVRepo 进程内 KVRepository（storage.driver=memory）
// 同样经过 JSON 序列化，保证与持久化实现的行为一致
type memoryKVRepo struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKVRepo 创建进程内 KVRepository 实例
func NewMemoryKVRepo() KVRepository {
	return &memoryKVRepo{data: make(map[string][]byte)}
}

func (r *memoryKVRepo) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化 %s 失败: %w", key, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = b
	return nil
}

func (r *memoryKVRepo) Get(_ context.Context, key string, dest any) (bool, error) {
	r.mu.RLock()
	b, ok := r.data[key]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, fmt.Errorf("反序列化 %s 失败: %w", key, err)
	}
	return true, nil
}

func (r *memoryKVRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
	return nil
}
