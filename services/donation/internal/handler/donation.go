package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/middleware"
	"example.com/pet-adoption/services/donation/internal/service"
)

// =============================================================================
// DTO
// =============================================================================

// CreateIntentRequest — тело запроса создания пожертвования.
// DonorID в теле отсутствует: берётся из JWT.
type CreateIntentRequest struct {
	Amount   int64  `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required,len=3"`
	Message  string `json:"message"`
}

// CreateIntentResponse — ответ создания пожертвования.
type CreateIntentResponse struct {
	DonationID   string `json:"donation_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// ConfirmRequest — тело запроса подтверждения платежа.
type ConfirmRequest struct {
	IntentID string `json:"intent_id" binding:"required"`
}

// DonationView — представление пожертвования в API.
// Version наружу не отдаётся: это внутренний механизм конкурентности.
type DonationView struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	IntentID  string    `json:"intent_id"`
	ChargeID  *string   `json:"charge_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListDonationsResponse — страница пожертвований донора.
type ListDonationsResponse struct {
	Donations  []DonationView `json:"donations"`
	TotalCount int64          `json:"total_count"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
}

// toView конвертирует доменную сущность в API представление.
func toView(d *domain.Donation) DonationView {
	return DonationView{
		ID:        d.ID,
		Amount:    d.Amount,
		Currency:  d.Currency,
		Status:    string(d.Status),
		IntentID:  d.ExternalIntentID,
		ChargeID:  d.ExternalChargeID,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// =============================================================================
// DonationHandler
// =============================================================================

// DonationHandler — HTTP обработчики операций с пожертвованиями.
type DonationHandler struct {
	creator   *service.IntentCreator
	confirmer *service.PaymentConfirmer
	query     *service.QueryService
}

// NewDonationHandler создаёт новый обработчик пожертвований.
func NewDonationHandler(creator *service.IntentCreator, confirmer *service.PaymentConfirmer, query *service.QueryService) *DonationHandler {
	return &DonationHandler{
		creator:   creator,
		confirmer: confirmer,
		query:     query,
	}
}

// CreateIntent обрабатывает POST /api/v1/donations/intent.
func (h *DonationHandler) CreateIntent(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидное тело запроса")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Невалидное тело запроса: " + err.Error(),
		})
		return
	}

	result, err := h.creator.Create(ctx, service.CreateDonationRequest{
		DonorID:  middleware.UserID(c),
		Amount:   req.Amount,
		Currency: req.Currency,
		Message:  req.Message,
	})
	if err != nil {
		HandleDomainError(c, err, "CreateIntent")
		return
	}

	c.JSON(http.StatusCreated, CreateIntentResponse{
		DonationID:   result.Donation.ID,
		ClientSecret: result.ClientSecret,
		Status:       string(result.Donation.Status),
	})
}

// Confirm обрабатывает POST /api/v1/donations/confirm.
// Фактический исход платежа определяет шлюз, а не клиент.
func (h *DonationHandler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидное тело запроса")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Невалидное тело запроса: " + err.Error(),
		})
		return
	}

	donation, err := h.confirmer.Confirm(ctx, req.IntentID, middleware.UserID(c))
	if err != nil {
		HandleDomainError(c, err, "Confirm")
		return
	}

	c.JSON(http.StatusOK, toView(donation))
}

// List обрабатывает GET /api/v1/donations.
// Query параметры: page, limit, status.
func (h *DonationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	req := service.ListDonationsRequest{
		DonorID: middleware.UserID(c),
	}

	if page, err := intQuery(c, "page"); err == nil {
		req.Page = page
	}
	if limit, err := intQuery(c, "limit"); err == nil {
		req.Limit = limit
	}

	if raw := c.Query("status"); raw != "" {
		status := domain.DonationStatus(raw)
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "Неизвестный статус: " + raw,
			})
			return
		}
		req.Status = &status
	}

	result, err := h.query.List(ctx, req)
	if err != nil {
		HandleDomainError(c, err, "List")
		return
	}

	views := make([]DonationView, len(result.Donations))
	for i, d := range result.Donations {
		views[i] = toView(d)
	}

	c.JSON(http.StatusOK, ListDonationsResponse{
		Donations:  views,
		TotalCount: result.TotalCount,
		Page:       result.Page,
		Limit:      result.Limit,
	})
}

// GetByID обрабатывает GET /api/v1/donations/:id.
func (h *DonationHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	donation, err := h.query.GetByID(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		HandleDomainError(c, err, "GetByID")
		return
	}

	c.JSON(http.StatusOK, toView(donation))
}

// GetByIntentID обрабатывает GET /api/v1/donations/intent/:intent_id.
func (h *DonationHandler) GetByIntentID(c *gin.Context) {
	ctx := c.Request.Context()

	donation, err := h.query.GetByIntentID(ctx, c.Param("intent_id"), middleware.UserID(c))
	if err != nil {
		HandleDomainError(c, err, "GetByIntentID")
		return
	}

	c.JSON(http.StatusOK, toView(donation))
}

// intQuery извлекает целочисленный query параметр.
func intQuery(c *gin.Context, name string) (int, error) {
	return strconv.Atoi(c.Query(name))
}
