// Package sortedindex 提供基于二分查找的有序只读索引。
//
// CRN 查找与教师姓名查找共用同一实现，只是键提取函数与比较函数不同。
package sortedindex

import "slices"

// Index 按 key(item) 升序排列的只读索引
type Index[T any, K any] struct {
	items []T
	key   func(T) K
	cmp   func(a, b K) int
}

// New 构建索引。items 会被复制并按 cmp 稳定排序，调用方后续修改原切片不影响索引。
func New[T any, K any](items []T, key func(T) K, cmp func(a, b K) int) *Index[T, K] {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b T) int { return cmp(key(a), key(b)) })
	return &Index[T, K]{items: sorted, key: key, cmp: cmp}
}

// Find 二分查找 k，返回其下标；不存在时返回 false
func (x *Index[T, K]) Find(k K) (int, bool) {
	i, ok := slices.BinarySearchFunc(x.items, k, func(item T, target K) int {
		return x.cmp(x.key(item), target)
	})
	if !ok {
		return -1, false
	}
	return i, true
}

// Get 查找 k 对应的元素
func (x *Index[T, K]) Get(k K) (T, bool) {
	i, ok := x.Find(k)
	if !ok {
		var zero T
		return zero, false
	}
	return x.items[i], true
}

// At 返回第 i 个元素
func (x *Index[T, K]) At(i int) T { return x.items[i] }

// Len 元素个数
func (x *Index[T, K]) Len() int { return len(x.items) }

// All 返回有序元素的浅拷贝
func (x *Index[T, K]) All() []T { return slices.Clone(x.items) }
