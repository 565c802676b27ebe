package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"semester-planner/internal/catalog"
	"semester-planner/internal/catalog/catalogtest"
	apperrors "semester-planner/pkg/errors"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(catalogtest.Dataset())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestLoader_FromFile(t *testing.T) {
	l := catalog.NewLoader(writeDataset(t), time.Second, zap.NewNop())

	_, err := l.Index()
	assert.ErrorIs(t, err, apperrors.ErrNotReady, "加载前应返回 ErrNotReady")
	select {
	case <-l.Ready():
		t.Fatal("加载前 Ready 不应关闭")
	default:
	}

	require.NoError(t, l.Load(context.Background()))

	select {
	case <-l.Ready():
	default:
		t.Fatal("加载成功后 Ready 应关闭")
	}

	idx, err := l.Index()
	require.NoError(t, err)
	s, err := idx.GetSection(150)
	require.NoError(t, err)
	assert.Equal(t, "ECE", s.Subject)
	assert.Equal(t, 1010, s.Course)

	// 再次调用 Load 不会重新加载
	require.NoError(t, l.Load(context.Background()))
	idx2, _ := l.Index()
	assert.Same(t, idx, idx2)
}

func TestLoader_FromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(catalogtest.Dataset())
	}))
	defer srv.Close()

	l := catalog.NewLoader(srv.URL+"/data.json", 5*time.Second, zap.NewNop())
	idx, err := func() (*catalog.Index, error) {
		go func() { _ = l.Load(context.Background()) }()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return l.Wait(ctx)
	}()
	require.NoError(t, err)
	assert.Equal(t, 5, idx.SectionCount())
}

func TestLoader_FailureStaysNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		source string
	}{
		{"HTTP 404", srv.URL},
		{"文件不存在", filepath.Join(t.TempDir(), "missing.json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := catalog.NewLoader(tt.source, time.Second, zap.NewNop())
			err := l.Load(context.Background())
			assert.ErrorIs(t, err, apperrors.ErrLoadFailure)

			_, err = l.Index()
			assert.ErrorIs(t, err, apperrors.ErrLoadFailure)

			select {
			case <-l.Done():
			default:
				t.Fatal("失败后 Done 应关闭")
			}
			select {
			case <-l.Ready():
				t.Fatal("失败后 Ready 不应关闭")
			default:
			}
		})
	}
}

func TestLoader_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sections": [{"crn": "abc"}]}`), 0o644))

	_, err := catalog.LoadFile(context.Background(), path, time.Second)
	assert.True(t, errors.Is(err, apperrors.ErrLoadFailure), "期望 ErrLoadFailure, 实际 %v", err)
}

func TestLoader_WaitHonoursContext(t *testing.T) {
	l := catalog.NewLoader("unused.json", time.Second, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatic(t *testing.T) {
	idx := catalogtest.Index()
	p := catalog.Static(idx)

	got, err := p.Index()
	require.NoError(t, err)
	assert.Same(t, idx, got)
	<-p.Ready()
}
