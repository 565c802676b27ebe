package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"semester-planner/internal/catalog"
	"semester-planner/internal/catalog/catalogtest"
	"semester-planner/internal/conflict"
	"semester-planner/internal/model"
	"semester-planner/pkg/debounce"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ── 测试替身 ──

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	m.sets++
	return nil
}

func (m *memStore) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	b, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) debounce.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) fireAll() {
	c.mu.Lock()
	timers := c.timers
	c.timers = nil
	c.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

func newTestSession(t *testing.T, store Store, opts ...Option) (*Session, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	opts = append([]Option{WithAfterFunc(clock.AfterFunc)}, opts...)
	s := New(Config{ID: "test", Debounce: DefaultDebounce}, catalogtest.Index(), store, zap.NewNop(), opts...)
	t.Cleanup(s.Close)
	return s, clock
}

// ── 已选班级 ──

func TestAddSection_TogglesOff(t *testing.T) {
	s, _ := newTestSession(t, nil)

	assert.Equal(t, ActionAdded, s.AddSection(100))
	assert.Equal(t, ActionRemoved, s.AddSection(100))
	assert.Empty(t, s.SelectedCRNs(), "连续两次添加应等价于从未添加")
}

func TestAddSection_UnresolvableIsSilent(t *testing.T) {
	s, _ := newTestSession(t, nil)

	assert.Equal(t, ActionNone, s.AddSection(99999))
	assert.Empty(t, s.SelectedCRNs())
	assert.False(t, s.Flush(), "无法解析的 CRN 不应触发广播")
}

func TestConflictScenario(t *testing.T) {
	s, _ := newTestSession(t, nil)

	s.AddSection(100)
	got, err := s.IsSectionConflict(200)
	require.NoError(t, err)
	assert.True(t, got, "CRN 200 (M 0930-1020) 应与 CRN 100 (M 0900-0950) 冲突")

	got, err = s.IsSectionConflict(100)
	require.NoError(t, err)
	assert.True(t, got, "已选班级与自身冲突")

	s.RemoveSection(100)
	got, err = s.IsSectionConflict(200)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = s.IsSectionConflict(99999)
	assert.ErrorIs(t, err, catalog.ErrSectionNotFound)
}

func TestIsSectionConflict_UsesCache(t *testing.T) {
	calls := 0
	checker := conflict.NewChecker(conflict.WithCompare(func(a, b *model.Section) bool {
		calls++
		return conflict.SectionsConflict(a, b)
	}))
	s, _ := newTestSession(t, nil, WithChecker(checker))

	s.AddSection(100)
	first, _ := s.IsSectionConflict(200)
	second, _ := s.IsSectionConflict(200)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "第二次查询应命中缓存")
}

func TestIsCourseConflict(t *testing.T) {
	s, _ := newTestSession(t, nil)
	s.AddSection(200) // M 0930-1020

	tests := []struct {
		name    string
		subject string
		course  int
		want    bool
	}{
		{"唯一班级冲突", "ECE", 1010, true},
		{"时间不冲突", "CSE", 2050, false},
		{"无上课时间", "MTH", 1100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IsCourseConflict(tt.subject, tt.course)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.IsCourseConflict("CSE", 9999)
	assert.ErrorIs(t, err, catalog.ErrCourseNotFound)
}

func TestSwitch(t *testing.T) {
	s, _ := newTestSession(t, nil)
	s.AddSection(100)

	action, err := s.Switch(200)
	require.NoError(t, err)
	assert.Equal(t, ActionSwitched, action)
	assert.Equal(t, []int{200}, s.SelectedCRNs())

	action, _ = s.Switch(200)
	assert.Equal(t, ActionRemoved, action)
	assert.Empty(t, s.SelectedCRNs())

	action, _ = s.Switch(300)
	assert.Equal(t, ActionAdded, action)
	assert.True(t, s.IsCourseAdded("CSE", 2050))
	assert.False(t, s.IsCourseAdded("CSE", 1001))

	_, err = s.Switch(99999)
	assert.ErrorIs(t, err, catalog.ErrSectionNotFound)
}

func TestRemoveCourse(t *testing.T) {
	s, _ := newTestSession(t, nil)
	s.AddSection(100)
	s.AddSection(200)
	s.AddSection(150)

	assert.Equal(t, 2, s.RemoveCourse("CSE", 1001))
	assert.Equal(t, []int{150}, s.SelectedCRNs())
	assert.False(t, s.RemoveSection(100), "未添加的班级移除应为空操作")
}

// ── 临时预览 ──

func TestTempSections_DisjointFromSelected(t *testing.T) {
	s, _ := newTestSession(t, nil)

	assert.True(t, s.AddTempSection(100))
	assert.False(t, s.AddTempSection(100), "重复预览应为空操作")

	s.AddSection(100)
	snap := s.Snapshot()
	assert.Len(t, snap.Selected, 1)
	assert.Empty(t, snap.Temp, "添加后应从预览中移除")

	assert.False(t, s.AddTempSection(100), "已选班级不能再加入预览")
	assert.True(t, s.AddTempSection(300))
	assert.True(t, s.RemoveTempSection(300))
	assert.False(t, s.RemoveTempSection(300))
}

// ── 屏蔽时段 ──

func TestBlockOuts(t *testing.T) {
	n := 0
	s, _ := newTestSession(t, nil, WithIDGenerator(func() string {
		n++
		return []string{"a", "b"}[n-1]
	}))

	b, err := s.AddBlockOut("Work", "2024-03-12T15:00:00", "2024-03-12T16:30:00")
	require.NoError(t, err)
	assert.Equal(t, "a", b.ID)

	_, err = s.AddBlockOut("Gym", "2024-03-13T08:00:00", "2024-03-13T09:00:00")
	require.NoError(t, err)

	_, err = s.AddBlockOut("Bad", "2024/03/12 15:00", "2024-03-12T16:00:00")
	assert.ErrorIs(t, err, ErrBlockOutInvalid)
	_, err = s.AddBlockOut("Backwards", "2024-03-12T16:00:00", "2024-03-12T15:00:00")
	assert.ErrorIs(t, err, ErrBlockOutInvalid)

	assert.True(t, s.RemoveBlockOut("a"))
	assert.False(t, s.RemoveBlockOut("a"))
	snap := s.Snapshot()
	require.Len(t, snap.BlockOuts, 1)
	assert.Equal(t, "Gym", snap.BlockOuts[0].Text)

	s.ClearBlockOuts()
	assert.Empty(t, s.Snapshot().BlockOuts)
}

// ── 广播与持久化 ──

func TestBroadcast_DebounceCoalesces(t *testing.T) {
	store := newMemStore()
	s, clock := newTestSession(t, store)
	ch, cancel := s.Subscribe()
	defer cancel()

	for _, crn := range []int{100, 300, 150, 300, 400} {
		s.AddSection(crn)
	}
	assert.Empty(t, ch, "窗口期内不应广播")

	clock.fireAll()

	require.Len(t, ch, 1, "一串修改只应产生一次广播")
	snap := <-ch
	var got []int
	for _, sec := range snap.Selected {
		got = append(got, sec.CRN)
	}
	assert.Equal(t, []int{100, 150, 400}, got, "广播内容应为最终状态")
	assert.Equal(t, uint64(1), snap.Version)

	var persisted []int
	ok, err := store.Get(context.Background(), NewKeys("semesterService", "test").Sections, &persisted)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{100, 150, 400}, persisted)
}

func TestBroadcast_SendNow(t *testing.T) {
	s, clock := newTestSession(t, nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Broadcast(true)
	clock.fireAll()
	require.Len(t, ch, 1)
	snap := <-ch
	assert.Empty(t, snap.Selected)
	assert.NotNil(t, snap.BlockOuts)
}

func TestRestore_RoundTrip(t *testing.T) {
	store := newMemStore()
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC) // 周三

	a, _ := newTestSession(t, store, WithClock(func() time.Time { return now }), WithLocation(time.UTC))
	a.AddSection(300)
	a.AddSection(100)
	_, err := a.AddBlockOut("Work", "2024-02-20T15:00:00", "2024-02-20T16:30:00")
	require.NoError(t, err)
	require.True(t, a.Flush())

	// 模拟换了学期的数据集：追加一个已不存在的 CRN
	keys := NewKeys("semesterService", "test")
	require.NoError(t, store.Set(context.Background(), keys.Sections, []int{300, 99999, 100}))

	b, clock := newTestSession(t, store, WithClock(func() time.Time { return now }), WithLocation(time.UTC))
	ch, cancel := b.Subscribe()
	defer cancel()

	require.NoError(t, b.Restore(context.Background()))
	assert.Equal(t, []int{300, 100}, b.SelectedCRNs())

	snap := b.Snapshot()
	require.Len(t, snap.BlockOuts, 1)
	assert.Equal(t, "2024-03-12T15:00:00", snap.BlockOuts[0].Start, "应移到本周二")
	assert.Equal(t, "2024-03-12T16:30:00", snap.BlockOuts[0].End)

	clock.fireAll()
	assert.Len(t, ch, 1, "恢复后应广播一次")
}

func TestRestore_EmptyStore(t *testing.T) {
	s, _ := newTestSession(t, newMemStore())
	require.NoError(t, s.Restore(context.Background()))
	assert.Empty(t, s.SelectedCRNs())
}

type failingStore struct{}

func (failingStore) Set(context.Context, string, any) error         { return errors.New("disk full") }
func (failingStore) Get(context.Context, string, any) (bool, error) { return false, nil }

func TestPersistFailureKeepsState(t *testing.T) {
	s, clock := newTestSession(t, failingStore{})
	s.AddSection(100)
	clock.fireAll()
	assert.Equal(t, []int{100}, s.SelectedCRNs(), "持久化失败不应影响内存状态")
}

func TestSession_RealTimer(t *testing.T) {
	s := New(Config{ID: "rt", Debounce: 10 * time.Millisecond}, catalogtest.Index(), newMemStore(), zap.NewNop())
	defer s.Close()

	ch, cancel := s.Subscribe()
	defer cancel()

	s.AddSection(100)
	s.AddSection(200)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap.Selected) == 2 {
				return
			}
		case <-timeout:
			t.Fatal("等待广播超时")
		}
	}
}

func TestClose_FlushesPending(t *testing.T) {
	store := newMemStore()
	clock := &manualClock{}
	s := New(Config{ID: "c"}, catalogtest.Index(), store, zap.NewNop(), WithAfterFunc(clock.AfterFunc))

	s.AddSection(100)
	s.Close()

	var persisted []int
	ok, _ := store.Get(context.Background(), NewKeys("semesterService", "c").Sections, &persisted)
	assert.True(t, ok)
	assert.Equal(t, []int{100}, persisted)
}
