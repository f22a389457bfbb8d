// Package middleware содержит HTTP middleware для Donation Service.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/pet-adoption/pkg/jwt"
	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/services/donation/internal/httputil"
)

// ContextKeyUserID — ключ Gin context с ID аутентифицированного донора.
const ContextKeyUserID = "user_id"

// TokenValidator — интерфейс для валидации токенов.
// Позволяет мокировать в тестах вместо реального валидатора с RSA ключами.
type TokenValidator interface {
	ValidateWithBlacklist(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// AuthMiddleware — middleware для проверки JWT токенов.
// Подпись проверяется локально публичным ключом (RS256),
// отозванные токены отклоняются по blacklist в Redis.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware создаёт новый middleware для аутентификации.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Handle возвращает Gin handler function для middleware.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		// Извлекаем токен из Authorization header.
		token := httputil.ExtractBearerToken(c)
		if token == "" {
			log.Debug().Msg("Отсутствует токен авторизации")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется авторизация",
			})
			return
		}

		claims, err := m.validator.ValidateWithBlacklist(ctx, token)
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка валидации токена")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Невалидный токен",
			})
			return
		}

		// Сохраняем данные донора в контекст Gin
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set("role", claims.Role)
		c.Set("jti", claims.ID)

		log.Debug().
			Str("user_id", claims.UserID).
			Str("jti", claims.ID).
			Msg("Донор аутентифицирован")

		c.Next()
	}
}

// UserID извлекает ID аутентифицированного донора из Gin context.
// Возвращает пустую строку, если запрос не прошёл аутентификацию.
func UserID(c *gin.Context) string {
	if id, ok := c.Get(ContextKeyUserID); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
