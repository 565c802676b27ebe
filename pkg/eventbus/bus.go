// Package eventbus 进程内发布/订阅，用于向展示层推送最新状态。
//
// 订阅者只关心最新状态：缓冲区满时丢弃最旧的一条消息，发布方永不阻塞。
package eventbus

import "sync"

// Bus 类型化的广播通道
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]chan T
	next   uint64
	buffer int
	closed bool
}

// New 创建 Bus，buffer 为每个订阅者的缓冲长度（至少为 1）
func New[T any](buffer int) *Bus[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus[T]{subs: make(map[uint64]chan T), buffer: buffer}
}

// Subscribe 订阅，返回只读通道与取消函数；取消后通道被关闭
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish 向所有订阅者投递 v，返回投递的订阅者数量
func (b *Bus[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			// 丢弃最旧的一条再投递
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
		n++
	}
	return n
}

// Len 当前订阅者数量
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭所有订阅通道
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
