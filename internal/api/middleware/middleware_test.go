package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KhalilA93/TImesheetTracker/config"
	"github.com/KhalilA93/TImesheetTracker/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:       "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
}

type mockBlacklist struct {
	revoked map[string]bool
	err     error
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return m.revoked[jti], m.err
}

type mockLimiter struct {
	allowed bool
	err     error
}

func (m *mockLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return m.allowed, m.err
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── JWTAuth ──

func TestJWTAuth(t *testing.T) {
	mgr := newTestJWT()
	access, _ := mgr.GenerateAccessToken("u1", "alice@example.com")
	refresh, _ := mgr.GenerateRefreshToken("u1", "alice@example.com")
	claims, _ := mgr.ParseToken(access)

	cases := []struct {
		name      string
		header    string
		blacklist Blacklist
		status    int
	}{
		{"缺少认证头", "", nil, http.StatusUnauthorized},
		{"格式错误", "Token " + access, nil, http.StatusUnauthorized},
		{"非法 Token", "Bearer garbage", nil, http.StatusUnauthorized},
		{"Refresh Token 不可访问", "Bearer " + refresh, nil, http.StatusUnauthorized},
		{"有效 Token", "Bearer " + access, nil, http.StatusOK},
		{"已注销", "Bearer " + access, &mockBlacklist{revoked: map[string]bool{claims.ID: true}}, http.StatusUnauthorized},
		{"黑名单异常时放行", "Bearer " + access, &mockBlacklist{err: errors.New("redis down")}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/me", JWTAuth(mgr, tc.blacklist), func(c *gin.Context) {
				if c.GetString("user_id") != "u1" {
					t.Errorf("期望注入 user_id=u1，实际 %q", c.GetString("user_id"))
				}
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if w := serve(r, req); w.Code != tc.status {
				t.Errorf("期望 %d，实际 %d", tc.status, w.Code)
			}
		})
	}
}

// ── RateLimit ──

func TestRateLimit_LocalFallback(t *testing.T) {
	for _, limiter := range []Limiter{nil, &mockLimiter{err: errors.New("redis down")}} {
		r := gin.New()
		r.GET("/ping", RateLimit(limiter, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			codes = append(codes, serve(r, httptest.NewRequest("GET", "/ping", nil)).Code)
		}
		if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
			t.Errorf("期望 [200 200 429]，实际 %v", codes)
		}
	}
}

func TestRateLimit_Redis(t *testing.T) {
	r := gin.New()
	r.GET("/ping", RateLimit(&mockLimiter{allowed: false}, 100, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, httptest.NewRequest("GET", "/ping", nil)); w.Code != http.StatusTooManyRequests {
		t.Errorf("期望 429，实际 %d", w.Code)
	}
}

// ── BodyLimit ──

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/upload", BodyLimit(8), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest("POST", "/upload", strings.NewReader("small")))
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际 %d", w.Code)
	}

	w = serve(r, httptest.NewRequest("POST", "/upload", bytes.NewReader(make([]byte, 64))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("期望 413，实际 %d", w.Code)
	}
}

// ── RequestID / SecurityHeaders ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/", RequestID(), func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	cases := []struct {
		name   string
		header string
		keep   bool
	}{
		{"沿用合法 ID", "abc-123_x.y:z", true},
		{"缺省时生成", "", false},
		{"超长替换", strings.Repeat("x", requestIDMaxLen+1), false},
		{"含空格替换", "abc def", false},
		{"含控制字符替换", "abc\x1b[31m", false},
		{"含非 ASCII 替换", "请求", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set(requestIDHeader, tc.header)
			}
			w := serve(r, req)
			got := w.Header().Get(requestIDHeader)
			if w.Body.String() != got {
				t.Errorf("上下文与响应头中的 ID 不一致: %q vs %q", w.Body.String(), got)
			}
			if tc.keep {
				if got != tc.header {
					t.Errorf("期望沿用 %q，实际 %q", tc.header, got)
				}
				return
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Errorf("期望替换为 UUID，实际 %q", got)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/", SecurityHeaders(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest("GET", "/", nil))
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("安全响应头缺失: %v", w.Header())
	}
}

// ── CORS ──

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com/"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := serve(r, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("期望预检返回 204，实际 %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("期望回写白名单 Origin，实际 %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	if w := serve(r, req); w.Code != http.StatusForbidden {
		t.Errorf("期望非白名单 Origin 返回 403，实际 %d", w.Code)
	}
}
