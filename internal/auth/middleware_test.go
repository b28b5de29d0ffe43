package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmtrace/marketplace-backend/internal/viewer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(tokens *TokenService) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), NewHandler(), tokens)
	return r
}

func TestIssueAndValidate(t *testing.T) {
	tokens := NewTokenService("secret", "farmtrace")
	admin := viewer.Admin{UserID: "admin-2", Name: "Lê Văn C", Level: viewer.LevelRegional, AssignedArea: "Tỉnh Lâm Đồng"}

	raw, err := tokens.Issue(admin, time.Hour)
	require.NoError(t, err)

	v, err := tokens.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, admin, v)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	tokens := NewTokenService("secret", "farmtrace")

	expired, err := tokens.Issue(viewer.Buyer{UserID: "b", Name: "B"}, -time.Minute)
	require.NoError(t, err)
	_, err = tokens.Validate(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	foreign, err := NewTokenService("other", "farmtrace").Issue(viewer.Buyer{UserID: "b", Name: "B"}, time.Hour)
	require.NoError(t, err)
	_, err = tokens.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireViewer(t *testing.T) {
	tokens := NewTokenService("secret", "farmtrace")
	r := newRouter(tokens)
	farmer := viewer.Farmer{UserID: "farmer-1", Name: "Nguyễn Văn A"}
	raw, err := tokens.Issue(farmer, time.Hour)
	require.NoError(t, err)

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Viewer viewer.Claims `json:"viewer"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "farmer-1", body.Viewer.ID)
		assert.Equal(t, "FARMER", body.Viewer.Role)
	})

	t.Run("query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me?access_token="+raw, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
