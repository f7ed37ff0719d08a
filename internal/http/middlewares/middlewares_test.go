package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter(m *middlewares.AuthMiddleware, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	chain := append([]gin.HandlerFunc{m.RequireAuth()}, extra...)

	r.GET("/protected", append(chain, func(c *gin.Context) {
		caller, ok := middlewares.CallerFromContext(c)

		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "no caller"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": caller.ID, "role": caller.Role})
	})...)

	return r
}

func get(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)

	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestRequireAuth(t *testing.T) {
	mgr := auth.NewManager("test-secret-key", 15*time.Minute, 24*time.Hour)

	validToken, err := mgr.GenerateAccessToken(7, "someone", "user")

	if err != nil {
		t.Fatal(err)
	}

	refreshRaw, _, _, err := mgr.GenerateRefreshToken(7, "someone", "user")

	if err != nil {
		t.Fatal(err)
	}

	expiredMgr := auth.NewManager("test-secret-key", -time.Minute, 24*time.Hour)

	expiredToken, err := expiredMgr.GenerateAccessToken(7, "someone", "user")

	if err != nil {
		t.Fatal(err)
	}

	otherSecret := auth.NewManager("a-different-secret", 15*time.Minute, 24*time.Hour)

	foreignToken, err := otherSecret.GenerateAccessToken(7, "someone", "user")

	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
	}{
		{"valid_token", "Bearer " + validToken, http.StatusOK},
		{"missing_header", "", http.StatusUnauthorized},
		{"not_bearer", "Basic abc123", http.StatusUnauthorized},
		{"empty_bearer", "Bearer ", http.StatusUnauthorized},
		{"garbage_token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"expired_token", "Bearer " + expiredToken, http.StatusUnauthorized},
		{"wrong_secret", "Bearer " + foreignToken, http.StatusUnauthorized},
		// a refresh token must never grant API access
		{"refresh_token_as_access", "Bearer " + refreshRaw, http.StatusUnauthorized},
	}

	r := newProtectedRouter(middlewares.NewAuthMiddleware(mgr))

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			w := get(r, "/protected", tt.authHeader)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	mgr := auth.NewManager("test-secret-key", 15*time.Minute, 24*time.Hour)

	adminToken, err := mgr.GenerateAccessToken(1, "boss", "admin")

	if err != nil {
		t.Fatal(err)
	}

	userToken, err := mgr.GenerateAccessToken(7, "someone", "user")

	if err != nil {
		t.Fatal(err)
	}

	m := middlewares.NewAuthMiddleware(mgr)
	r := newProtectedRouter(m, m.RequireAdmin())

	if w := get(r, "/protected", "Bearer "+adminToken); w.Code != http.StatusOK {
		t.Fatalf("admin: got status %d, body=%s", w.Code, w.Body.String())
	}

	if w := get(r, "/protected", "Bearer "+userToken); w.Code != http.StatusForbidden {
		t.Fatalf("user: got status %d, body=%s", w.Code, w.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	rl := middlewares.NewRateLimiter(3, time.Minute)

	r := gin.New()
	r.POST("/login", rl.RateLimiterMiddleware(middlewares.KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		return w
	}

	for i := 0; i < 3; i++ {
		if w := post(); w.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d", i+1, w.Code)
		}
	}

	w := post()

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", w.Code)
	}

	if w.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}

func TestRateLimiterIsolatesKeys(t *testing.T) {
	rl := middlewares.NewRateLimiter(1, time.Minute)

	r := gin.New()
	r.POST("/login", rl.RateLimiterMiddleware(middlewares.KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	post := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		return w.Code
	}

	if code := post("192.0.2.1:1234"); code != http.StatusOK {
		t.Fatalf("first client: got status %d", code)
	}

	if code := post("192.0.2.1:9999"); code != http.StatusTooManyRequests {
		t.Fatalf("same ip, new port: got status %d, want 429", code)
	}

	if code := post("192.0.2.2:1234"); code != http.StatusOK {
		t.Fatalf("second client: got status %d", code)
	}
}
