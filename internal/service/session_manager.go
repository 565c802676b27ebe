package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"semester-planner/config"
	"semester-planner/internal/catalog"
	"semester-planner/internal/explorer"
	"semester-planner/internal/session"
)

// ── 会话模块业务错误 ──

var ErrSessionNotFound = errors.New("选课会话不存在")

// sessionEntry 一个选课会话及其浏览器
type sessionEntry struct {
	session *session.Session

	restoreOnce sync.Once
	restoreErr  error

	explorerOnce sync.Once
	explorer     *explorer.Explorer
	idx          *catalog.Index

	lastUsed atomic.Int64 // UnixNano
	holds    atomic.Int32 // 活跃订阅数，大于 0 时不淘汰
}

func (e *sessionEntry) touch(now time.Time) { e.lastUsed.Store(now.UnixNano()) }

// hold 登记一个长连接订阅，返回的 release 可重复调用
func (e *sessionEntry) hold() (release func()) {
	e.holds.Add(1)
	var once sync.Once
	return func() { once.Do(func() { e.holds.Add(-1) }) }
}

// Explorer 懒加载会话的班级浏览器
func (e *sessionEntry) Explorer() *explorer.Explorer {
	e.explorerOnce.Do(func() {
		// 无预填参数时 BuildFields 不会出错
		e.explorer, _ = explorer.New(e.idx, nil)
	})
	return e.explorer
}

// restore 从存储恢复一次；并发调用等待同一次恢复完成
func (e *sessionEntry) restore(ctx context.Context) error {
	e.restoreOnce.Do(func() {
		e.restoreErr = e.session.Restore(ctx)
	})
	return e.restoreErr
}

func (e *sessionEntry) close() {
	e.session.Close()
	e.explorerOnce.Do(func() {}) // 关闭后不再创建
	if e.explorer != nil {
		e.explorer.Close()
	}
}

// sessionManager 进程内的会话注册表
//
// 会话按 ID 懒恢复：令牌有效但进程内没有该会话时（如服务重启后），
// 从持久化存储中恢复。创建会话时写入一个标记键，用于区分"从未创建"与"内容为空"。
type sessionManager struct {
	cfg      config.SessionConfig
	provider catalog.Provider
	store    session.Store
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
	opts     []session.Option

	mu      sync.Mutex
	entries map[string]*sessionEntry

	stopJanitor chan struct{}
	stopOnce    sync.Once
	janitorDone chan struct{}
}

func newSessionManager(cfg config.SessionConfig, provider catalog.Provider, store session.Store, logger *zap.Logger, opts ...session.Option) *sessionManager {
	m := &sessionManager{
		cfg:         cfg,
		provider:    provider,
		store:       store,
		loc:         cfg.Location(),
		logger:      logger,
		now:         time.Now,
		opts:        opts,
		entries:     make(map[string]*sessionEntry),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	if cfg.IdleTimeout > 0 {
		go m.janitor(cfg.IdleTimeout)
	} else {
		close(m.janitorDone)
	}
	return m
}

// janitor 周期性淘汰空闲会话
func (m *sessionManager) janitor(idle time.Duration) {
	defer close(m.janitorDone)
	interval := min(max(idle/4, time.Second), 5*time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopJanitor:
			return
		case <-ticker.C:
			m.evictIdle(idle)
		}
	}
}

// evictIdle 关闭超过 idle 未被访问且没有订阅者的会话，返回淘汰数量。
// 关闭时会立即写入待持久化的状态，之后凭令牌访问会从存储懒恢复。
func (m *sessionManager) evictIdle(idle time.Duration) int {
	cutoff := m.now().Add(-idle).UnixNano()

	m.mu.Lock()
	var evicted []*sessionEntry
	for id, e := range m.entries {
		if e.holds.Load() == 0 && e.lastUsed.Load() <= cutoff {
			delete(m.entries, id)
			evicted = append(evicted, e)
		}
	}
	m.mu.Unlock()

	for _, e := range evicted {
		e.close()
	}
	if len(evicted) > 0 {
		m.logger.Info("淘汰空闲选课会话", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

func (m *sessionManager) markerKey(id string) string {
	prefix := m.cfg.KeyPrefix
	if prefix == "" {
		prefix = "semesterService"
	}
	return prefix + ".session:" + id
}

func (m *sessionManager) newEntry(idx *catalog.Index, id string) *sessionEntry {
	opts := append([]session.Option{session.WithLocation(m.loc), session.WithClock(m.now)}, m.opts...)
	s := session.New(session.Config{
		ID:          id,
		KeyPrefix:   m.cfg.KeyPrefix,
		Debounce:    m.cfg.Debounce,
		PersistTemp: m.cfg.PersistTemp,
	}, idx, m.store, m.logger, opts...)
	return &sessionEntry{session: s, idx: idx}
}

// create 新建空会话并写入标记键
func (m *sessionManager) create(ctx context.Context) (*sessionEntry, error) {
	idx, err := m.provider.Index()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := m.store.Set(ctx, m.markerKey(id), m.now().UTC().Format(time.RFC3339)); err != nil {
		m.logger.Error("写入会话标记失败", zap.String("session_id", id), zap.Error(err))
		return nil, fmt.Errorf("创建会话失败: %w", err)
	}

	e := m.newEntry(idx, id)
	e.restoreOnce.Do(func() {}) // 新会话无需恢复
	e.touch(m.now())

	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()

	m.logger.Info("创建选课会话", zap.String("session_id", id))
	return e, nil
}

// lookup 返回进程内会话；不存在时尝试从存储恢复
func (m *sessionManager) lookup(ctx context.Context, id string) (*sessionEntry, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		e.touch(m.now())
	}
	m.mu.Unlock()
	if ok {
		return e, e.restore(ctx)
	}

	idx, err := m.provider.Index()
	if err != nil {
		return nil, err
	}

	var createdAt string
	found, err := m.store.Get(ctx, m.markerKey(id), &createdAt)
	if err != nil {
		m.logger.Error("读取会话标记失败", zap.String("session_id", id), zap.Error(err))
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	if existing, ok := m.entries[id]; ok {
		e = existing
	} else {
		e = m.newEntry(idx, id)
		m.entries[id] = e
	}
	e.touch(m.now())
	m.mu.Unlock()

	if err := e.restore(ctx); err != nil {
		m.logger.Warn("恢复选课会话失败", zap.String("session_id", id), zap.Error(err))
		m.mu.Lock()
		if m.entries[id] == e {
			delete(m.entries, id)
		}
		m.mu.Unlock()
		e.close()
		return nil, err
	}
	return e, nil
}

// closeAll 立即执行待发送的广播并关闭全部会话
func (m *sessionManager) closeAll() {
	m.stopOnce.Do(func() { close(m.stopJanitor) })
	<-m.janitorDone

	m.mu.Lock()
	entries := make([]*sessionEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.entries = make(map[string]*sessionEntry)
	m.mu.Unlock()

	for _, e := range entries {
		e.close()
	}
	m.logger.Info("选课会话已全部关闭", zap.Int("count", len(entries)))
}

// count 进程内会话数量
func (m *sessionManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
