package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semester-planner/internal/filter"
	"semester-planner/internal/sorter"
)

// ── 无状态浏览 ──

func TestExplorerService_List(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name  string
		query url.Values
		want  []int
	}{
		{"默认", url.Values{}, []int{100, 150, 200, 300, 400}},
		{"按学科筛选并降序", url.Values{"subject": {"CSE"}, "sort": {"-crn"}}, []int{300, 200, 100}},
		{"按学分筛选", url.Values{"cr": {"4"}}, []int{300, 400}},
		{"按教师排序", url.Values{"sort": {"instructor"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := env.explorer.List(tt.query, 1, 10)
			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, sectionCRNs(page.Sections))
			} else {
				assert.Len(t, page.Sections, 5)
			}
		})
	}
}

func TestExplorerService_List_InvalidSort(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.explorer.List(url.Values{"sort": {"room"}}, 1, 10)
	if !errors.Is(err, ErrInvalidSortKey) {
		t.Errorf("期望 ErrInvalidSortKey, 实际: %v", err)
	}
	_, err = env.explorer.List(url.Values{"cr": {"abc"}}, 1, 10)
	if !errors.Is(err, filter.ErrInvalidValue) {
		t.Errorf("期望 ErrInvalidValue, 实际: %v", err)
	}
}

func TestParseSortParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    sorter.State
		wantErr bool
	}{
		{"", sorter.Default(), false},
		{"title", sorter.State{Key: sorter.KeyTitle, Ascending: true}, false},
		{"-cap", sorter.State{Key: sorter.KeyCap, Ascending: false}, false},
		{" cr ", sorter.State{Key: sorter.KeyCredits, Ascending: true}, false},
		{"-", sorter.State{}, true},
		{"nope", sorter.State{}, true},
	}
	for _, tt := range tests {
		got, err := ParseSortParam(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSortKey) {
				t.Errorf("ParseSortParam(%q): 期望 ErrInvalidSortKey, 实际 %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseSortParam(%q): 期望 %+v, 实际 %+v (%v)", tt.raw, tt.want, got, err)
		}
	}
}

func TestExplorerService_Filters(t *testing.T) {
	env := setupTestEnv(t)

	fields, err := env.explorer.Filters(url.Values{"subject": {"ECE"}})
	require.NoError(t, err)

	var subject *string
	for _, f := range fields {
		if f.Key == string(filter.KeySubject) {
			subject = f.Value
			assert.True(t, f.Enabled)
			assert.Len(t, f.Options, 3)
		}
	}
	require.NotNil(t, subject)
	assert.Equal(t, "ECE", *subject)
}

// ── 会话浏览器 ──

func TestExplorerService_SessionState(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	id := createSession(t, env)

	ch, cancel, err := env.explorer.Subscribe(ctx, id)
	require.NoError(t, err)
	defer cancel()

	state, err := env.explorer.Sort(ctx, id, sorter.KeyCRN)
	require.NoError(t, err)
	assert.Equal(t, sorter.State{Key: sorter.KeyCRN, Ascending: false}, state.Sort)

	_, err = env.explorer.SetFilter(ctx, id, filter.KeySubject, "CSE")
	require.NoError(t, err)
	change := <-ch
	assert.Equal(t, uint64(1), change.Version)

	page, err := env.explorer.View(ctx, id, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{300, 200, 100}, sectionCRNs(page.Sections))

	_, err = env.explorer.DisableFilters(ctx, id)
	require.NoError(t, err)
	page, _ = env.explorer.View(ctx, id, 1, 10)
	assert.Equal(t, 5, page.Total)

	_, err = env.explorer.SetFilterEnabled(ctx, id, filter.KeySubject, true)
	require.NoError(t, err)
	page, _ = env.explorer.View(ctx, id, 1, 10)
	assert.Equal(t, 3, page.Total)

	_, err = env.explorer.ClearFilter(ctx, id, filter.KeySubject)
	require.NoError(t, err)
	state, err = env.explorer.ClearFilters(ctx, id)
	require.NoError(t, err)
	for _, f := range state.Fields {
		assert.Nil(t, f.Value, "字段 %s 应已清空", f.Key)
	}
}

func TestExplorerService_SessionErrors(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	id := createSession(t, env)

	_, err := env.explorer.Sort(ctx, id, sorter.Key("room"))
	assert.True(t, errors.Is(err, ErrInvalidSortKey))

	_, err = env.explorer.SetFilter(ctx, id, filter.Key("room"), "1")
	assert.True(t, errors.Is(err, filter.ErrUnknownField))

	_, err = env.explorer.State(ctx, "missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}
