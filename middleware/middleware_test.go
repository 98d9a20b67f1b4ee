package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3run4/stampcard/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthRequired(t *testing.T) {
	issuer := utils.NewTokenIssuer("secret", time.Hour)
	r := gin.New()
	r.GET("/member", AuthRequired(issuer, utils.RoleMember), func(ctx *gin.Context) {
		ctx.String(http.StatusOK, SessionID(ctx))
	})

	memberTok, err := issuer.GenerateToken("sid-1", utils.RoleMember)
	require.NoError(t, err)
	adminTok, err := issuer.GenerateToken("sid-2", utils.RoleAdmin)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"wrong role", "Bearer " + adminTok, http.StatusForbidden},
		{"ok", "Bearer " + memberTok, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/member", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "sid-1", w.Body.String())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(4))
	r.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{204, 204, 429, 429}, codes)
}
