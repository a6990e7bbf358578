package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/testutil"
)

func withUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set("user_id", user.ID)
			c.Set("user", user)
		}
		c.Next()
	}
}

func serve(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		user     *models.User
		expected int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"fan", &models.User{ID: "u1"}, http.StatusForbidden},
		{"admin", &models.User{ID: "u2", IsAdmin: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/admin", withUser(tt.user), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
			assert.Equal(t, tt.expected, serve(router, "GET", "/admin", nil).Code)
		})
	}
}

func TestRequireNotBanned(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	banned := &models.User{ID: "b", IsBanned: true, BannedReason: "spam", BannedAt: &now}

	router := gin.New()
	router.Use(withUser(banned), RequireNotBanned())
	router.GET("/posts", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/posts", func(c *gin.Context) { c.Status(http.StatusCreated) })

	assert.Equal(t, http.StatusOK, serve(router, "GET", "/posts", nil).Code)

	w := serve(router, "POST", "/posts", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "BANNED")

	clean := gin.New()
	clean.Use(withUser(&models.User{ID: "ok"}), RequireNotBanned())
	clean.POST("/posts", func(c *gin.Context) { c.Status(http.StatusCreated) })
	assert.Equal(t, http.StatusCreated, serve(clean, "POST", "/posts", nil).Code)
}

func TestAdminImpersonation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, "admin", testutil.Admin)
	fan := testutil.CreateUser(t, db, "fan")

	build := func(actor *models.User) *gin.Engine {
		router := gin.New()
		router.Use(withUser(actor), AdminImpersonationMiddleware(db))
		router.GET("/whoami", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "by": c.GetString("impersonated_by")})
		})
		return router
	}

	w := serve(build(admin), "GET", "/whoami", map[string]string{"X-Impersonate-User": "fan"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fan.ID)
	assert.Contains(t, w.Body.String(), admin.ID)

	w = serve(build(fan), "GET", "/whoami", map[string]string{"X-Impersonate-User": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(build(admin), "GET", "/whoami", map[string]string{"X-Impersonate-User": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(build(fan), "GET", "/whoami", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fan.ID)
}

func TestRequestIDAndCorrelation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware(), CorrelationMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetCorrelationIDFromContext(c.Request.Context()))
	})

	w := serve(router, "GET", "/", map[string]string{"X-Request-ID": "req-1"})
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-1", w.Header().Get("X-Correlation-ID"))
	assert.Equal(t, "req-1", w.Body.String())

	w = serve(router, "GET", "/", map[string]string{"X-Correlation-ID": "flow-9"})
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "flow-9", w.Body.String())
}

func TestResponseCacheDisabledWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	router := gin.New()
	router.GET("/teams", ResponseCacheMiddleware(nil, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"teams": []string{}})
	})

	serve(router, "GET", "/teams", nil)
	w := serve(router, "GET", "/teams", nil)
	assert.Equal(t, 2, calls)
	assert.Empty(t, w.Header().Get("X-Cache"))
}
