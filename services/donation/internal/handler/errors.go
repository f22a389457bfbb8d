// Package handler содержит HTTP обработчики для REST API Donation Service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/services/donation/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleDomainError преобразует доменную ошибку в HTTP ответ.
// Используется всеми handlers для единообразной обработки ошибок.
// ВАЖНО: err не должен быть nil — это баг в вызывающем коде.
func HandleDomainError(c *gin.Context, err error, method string) {
	// Guard: nil ошибка — баг в вызывающем коде, логируем и возвращаем 500.
	if err == nil {
		logger.Error().Str("method", method).Msg("HandleDomainError вызван с nil ошибкой — баг в коде")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	log := logger.FromContext(c.Request.Context())

	var httpStatus int
	var errorCode string

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrUnsupportedCurrency),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrDonorRequired):
		httpStatus = http.StatusBadRequest
		errorCode = "validation_error"

	case errors.Is(err, domain.ErrDonationNotFound):
		httpStatus = http.StatusNotFound
		errorCode = "not_found"

	case errors.Is(err, domain.ErrDuplicateIntent):
		httpStatus = http.StatusConflict
		errorCode = "already_exists"

	case errors.Is(err, domain.ErrAccessDenied):
		httpStatus = http.StatusForbidden
		errorCode = "access_denied"

	case errors.Is(err, domain.ErrGatewayUnavailable),
		errors.Is(err, domain.ErrIntentCreation):
		httpStatus = http.StatusServiceUnavailable
		errorCode = "gateway_unavailable"

	default:
		httpStatus = http.StatusInternalServerError
		errorCode = "internal_error"
		log.Error().
			Err(err).
			Str("method", method).
			Msg("Внутренняя ошибка")
	}

	c.JSON(httpStatus, ErrorResponse{
		Error:   errorCode,
		Message: err.Error(),
	})
}
