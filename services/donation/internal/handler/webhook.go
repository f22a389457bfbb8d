package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/service"
)

// headerStripeSignature — заголовок подписи webhook Stripe.
const headerStripeSignature = "Stripe-Signature"

// WebhookHandler — HTTP обработчик webhook-уведомлений платёжного шлюза.
//
// Маппинг исходов в HTTP статусы управляет ретраями шлюза:
//   - 200: событие обработано/проигнорировано/дубликат — больше не доставлять
//   - 401: подпись невалидна — ретраи бессмысленны
//   - 400: payload нечитаем — ретраи бессмысленны
//   - 500: внутренний сбой — шлюз доставит событие повторно
type WebhookHandler struct {
	processor *service.WebhookProcessor
}

// NewWebhookHandler создаёт обработчик webhook.
func NewWebhookHandler(processor *service.WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Handle обрабатывает POST /api/v1/webhooks/payment.
//
// Тело читается сырым: подпись считается от байтов payload,
// любая десериализация до проверки подписи недопустима.
func (h *WebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	payload, err := c.GetRawData()
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось прочитать тело webhook")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "malformed_payload",
			Message: "Не удалось прочитать тело запроса",
		})
		return
	}

	signature := c.GetHeader(headerStripeSignature)

	result, err := h.processor.Process(ctx, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_signature",
				Message: "Невалидная подпись webhook",
			})
		case errors.Is(err, domain.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "malformed_payload",
				Message: "Не удалось разобрать payload",
			})
		default:
			// 500 — сигнал шлюзу доставить событие повторно
			log.Error().Err(err).Msg("Внутренняя ошибка обработки webhook")
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Внутренняя ошибка сервера",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": string(result)})
}
