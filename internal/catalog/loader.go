package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"semester-planner/internal/model"
	apperrors "semester-planner/pkg/errors"
)

// Provider 提供已就绪的索引；未就绪时返回 ErrNotReady，加载失败时返回 ErrLoadFailure
type Provider interface {
	Index() (*Index, error)
	Ready() <-chan struct{}
}

// Loader 一次性加载数据集并提供就绪信号。
// 加载失败后保持未就绪状态，不自动重试。
type Loader struct {
	source  string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger

	once  sync.Once
	ready chan struct{} // 成功后关闭
	done  chan struct{} // 成功或失败后关闭

	mu  sync.RWMutex
	idx *Index
	err error
}

// NewLoader 创建 Loader，source 为本地文件路径或 http(s) URL
func NewLoader(source string, timeout time.Duration, logger *zap.Logger) *Loader {
	return &Loader{
		source:  source,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Load 执行加载；只有第一次调用生效
func (l *Loader) Load(ctx context.Context) error {
	l.once.Do(func() {
		start := time.Now()
		idx, err := l.load(ctx)

		l.mu.Lock()
		l.idx, l.err = idx, err
		l.mu.Unlock()

		if err != nil {
			l.logger.Error("课程数据加载失败", zap.String("source", l.source), zap.Error(err))
		} else {
			stats := idx.Stats()
			l.logger.Info("课程数据加载完成",
				zap.String("source", l.source),
				zap.Int("subjects", stats.Subjects),
				zap.Int("sections", stats.Sections),
				zap.Duration("elapsed", time.Since(start)),
			)
			close(l.ready)
		}
		close(l.done)
	})

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

func (l *Loader) load(ctx context.Context) (*Index, error) {
	rc, err := l.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrLoadFailure, err)
	}
	defer rc.Close()

	ds, err := Decode(rc)
	if err != nil {
		return nil, err
	}
	return New(ds)
}

func (l *Loader) open(ctx context.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(l.source, "http://") && !strings.HasPrefix(l.source, "https://") {
		return os.Open(l.source)
	}

	// 超时由 http.Client.Timeout 控制，覆盖读取 Body 的全过程
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", l.source, resp.Status)
	}
	return resp.Body, nil
}

// Decode 解析数据集 JSON
func Decode(r io.Reader) (*model.Dataset, error) {
	var ds model.Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("%w: 解析数据集失败: %v", apperrors.ErrLoadFailure, err)
	}
	return &ds, nil
}

// Index 返回已就绪的索引
func (l *Loader) Index() (*Index, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.idx == nil {
		return nil, apperrors.ErrNotReady
	}
	return l.idx, nil
}

// Ready 加载成功后关闭的通道
func (l *Loader) Ready() <-chan struct{} { return l.ready }

// Done 加载结束（无论成败）后关闭的通道
func (l *Loader) Done() <-chan struct{} { return l.done }

// Wait 阻塞直到加载结束或 ctx 取消
func (l *Loader) Wait(ctx context.Context) (*Index, error) {
	select {
	case <-l.done:
		return l.Index()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Source 数据源
func (l *Loader) Source() string { return l.source }

// ── 静态 Provider ──

type static struct {
	idx   *Index
	ready chan struct{}
}

// Static 包装一个已构建的索引，立即就绪
func Static(idx *Index) Provider {
	ch := make(chan struct{})
	close(ch)
	return &static{idx: idx, ready: ch}
}

func (s *static) Index() (*Index, error) { return s.idx, nil }
func (s *static) Ready() <-chan struct{} { return s.ready }

// LoadFile 从本地文件或 URL 同步构建索引，供命令行工具使用
func LoadFile(ctx context.Context, source string, timeout time.Duration) (*Index, error) {
	l := NewLoader(source, timeout, zap.NewNop())
	if err := l.Load(ctx); err != nil {
		return nil, err
	}
	return l.Index()
}
