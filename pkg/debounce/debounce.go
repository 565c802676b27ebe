// Package debounce 实现尾沿防抖：窗口期内的多次触发只在最后一次触发后执行一次。
package debounce

import (
	"sync"
	"time"
)

// Timer 可取消的延时任务
type Timer interface {
	Stop() bool
}

// AfterFunc 延时调度函数，默认使用 time.AfterFunc，测试中可替换为手动时钟
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer 单槽位防抖器：任意时刻最多只有一个待执行任务
type Debouncer struct {
	window    time.Duration
	fn        func()
	afterFunc AfterFunc

	mu    sync.Mutex
	timer Timer
	gen   uint64 // 每次重新调度递增，已过期的回调据此放弃执行
}

// New 创建防抖器，fn 在窗口静默后于独立 goroutine 中执行
func New(window time.Duration, fn func()) *Debouncer {
	return NewWithAfterFunc(window, fn, stdAfterFunc)
}

// NewWithAfterFunc 使用自定义调度函数创建防抖器
func NewWithAfterFunc(window time.Duration, fn func(), af AfterFunc) *Debouncer {
	return &Debouncer{window: window, fn: fn, afterFunc: af}
}

// Trigger 取消尚未执行的任务并重新开始计时
func (d *Debouncer) Trigger() {
	d.schedule(d.window)
}

// TriggerNow 取消尚未执行的任务，以 0 窗口重新调度
func (d *Debouncer) TriggerNow() {
	d.schedule(0)
}

func (d *Debouncer) schedule(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.afterFunc(window, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Flush 若有待执行任务，则取消计时并在当前 goroutine 立即执行；返回是否执行
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	d.mu.Unlock()

	d.fn()
	return true
}

// Stop 取消待执行任务，不执行
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending 是否有待执行任务
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
