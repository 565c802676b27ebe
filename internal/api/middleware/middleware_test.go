package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"semester-planner/config"
	"semester-planner/internal/api/handler"
	"semester-planner/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSessionAuth(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-0123456789", SessionTokenTTL: time.Hour})
	token, err := mgr.GenerateSessionToken("sess-1")
	assert.NoError(t, err)

	r := gin.New()
	r.GET("/me", SessionAuth(mgr), func(c *gin.Context) {
		id, ok := handler.MustGetSessionID(c)
		if ok {
			c.String(http.StatusOK, id)
		}
	})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
		body   string
	}{
		{"Bearer 令牌", "Bearer " + token, "", http.StatusOK, "sess-1"},
		{"查询参数令牌", "", "?token=" + token, http.StatusOK, "sess-1"},
		{"缺少令牌", "", "", http.StatusUnauthorized, ""},
		{"格式错误", "Token " + token, "", http.StatusUnauthorized, ""},
		{"无效令牌", "Bearer abc", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestCatalogReady(t *testing.T) {
	ready := make(chan struct{})
	r := gin.New()
	r.GET("/x", CatalogReady(ready), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	close(ready)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(0.001, 2), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_Disabled(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(0, 0), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for range 5 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestRequestID_RejectsUnsafeValues(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	for _, rid := range []string{"a b", "abc\tdef", "<script>", strings.Repeat("a", requestIDMaxLen+1)} {
		req := httptest.NewRequest("GET", "/x", nil)
		req.Header.Set("X-Request-ID", rid)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.NotEqual(t, rid, w.Header().Get("X-Request-ID"), "不安全的 ID 应被替换: %q", rid)
		assert.Len(t, w.Body.String(), 36)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/api/v1/catalog/meta", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/api/v1/sessions/me", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/catalog/meta", nil))
	csp := w.Header().Get("Content-Security-Policy")
	assert.Contains(t, csp, "default-src 'none'")
	assert.NotContains(t, csp, "unsafe-eval")
	assert.Empty(t, w.Header().Get("Cache-Control"), "目录数据可以缓存")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/sessions/me", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/x", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", strings.NewReader("small")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, "声明长度超限应直接拒绝")
	assert.Contains(t, w.Body.String(), `"code":10005`)
}

func TestRedactQuery(t *testing.T) {
	assert.Equal(t, "", redactQuery(""))
	assert.Equal(t, "page=2", redactQuery("page=2"))
	got := redactQuery("page=2&token=eyJhbGciOi")
	assert.NotContains(t, got, "eyJhbGciOi")
	assert.Contains(t, got, "token=REDACTED")
}
