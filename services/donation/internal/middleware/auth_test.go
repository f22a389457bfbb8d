// Package middleware — тесты auth middleware.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"example.com/pet-adoption/pkg/jwt"
)

// mockTokenValidator — мок TokenValidator.
type mockTokenValidator struct {
	mock.Mock
}

func (m *mockTokenValidator) ValidateWithBlacklist(ctx context.Context, tokenString string) (*jwt.Claims, error) {
	args := m.Called(ctx, tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jwt.Claims), args.Error(1)
}

// setupAuthTest собирает тестовый роутер с auth middleware.
func setupAuthTest(validator TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewAuthMiddleware(validator).Handle())
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("валидный токен пропускается", func(t *testing.T) {
		validator := new(mockTokenValidator)
		validator.On("ValidateWithBlacklist", mock.Anything, "valid-token").
			Return(&jwt.Claims{UserID: "donor-1"}, nil).Once()

		r := setupAuthTest(validator)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "donor-1")
	})

	t.Run("запрос без токена отклоняется", func(t *testing.T) {
		validator := new(mockTokenValidator)
		r := setupAuthTest(validator)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		validator.AssertNotCalled(t, "ValidateWithBlacklist")
	})

	t.Run("невалидный токен отклоняется", func(t *testing.T) {
		validator := new(mockTokenValidator)
		validator.On("ValidateWithBlacklist", mock.Anything, "bad-token").
			Return(nil, errors.New("подпись невалидна")).Once()

		r := setupAuthTest(validator)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("заголовок без Bearer префикса отклоняется", func(t *testing.T) {
		validator := new(mockTokenValidator)
		r := setupAuthTest(validator)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		validator.AssertNotCalled(t, "ValidateWithBlacklist")
	})
}
