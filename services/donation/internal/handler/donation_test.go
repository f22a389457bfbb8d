package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/gateway"
	"example.com/pet-adoption/services/donation/internal/middleware"
	"example.com/pet-adoption/services/donation/internal/service"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateIntent(ctx context.Context, params gateway.CreateIntentParams) (*gateway.CreateIntentResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreateIntentResult), args.Error(1)
}

func (m *mockGateway) RetrieveIntent(ctx context.Context, intentID string) (*gateway.RetrieveIntentResult, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RetrieveIntentResult), args.Error(1)
}

// setupDonationRouter собирает роутер с donation-маршрутами и
// тестовым auth middleware, подставляющим донора из JWT.
func setupDonationRouter(t *testing.T, repo *mockRepo, gw *mockGateway, donorID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limits := service.DonationLimits{
		MaxAmount: 5_000_000,
		SupportsCurrency: func(c string) bool {
			return c == "usd" || c == "eur"
		},
	}

	engine := service.NewTransitionEngine(repo)
	h := NewDonationHandler(
		service.NewIntentCreator(repo, gw, limits),
		service.NewPaymentConfirmer(repo, gw, engine),
		service.NewQueryService(repo),
	)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if donorID != "" {
			c.Set(middleware.ContextKeyUserID, donorID)
		}
		c.Next()
	})

	donations := r.Group("/api/v1/donations")
	{
		donations.POST("/intent", h.CreateIntent)
		donations.POST("/confirm", h.Confirm)
		donations.GET("", h.List)
		donations.GET("/:id", h.GetByID)
	}
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestDonationHandler_CreateIntent(t *testing.T) {
	t.Run("успешное создание — 201", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-1")

		gw.On("CreateIntent", mock.Anything, mock.MatchedBy(func(p gateway.CreateIntentParams) bool {
			return p.DonorID == "donor-1" && p.Amount == 2500 && p.Currency == "usd"
		})).Return(&gateway.CreateIntentResult{
			IntentID:     "pi_new",
			ClientSecret: "pi_new_secret",
		}, nil).Once()
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Donation")).
			Return(nil).Once()

		w := doJSON(r, http.MethodPost, "/api/v1/donations/intent", gin.H{
			"amount":   2500,
			"currency": "USD",
			"message":  "На корм котятам",
		})

		require.Equal(t, http.StatusCreated, w.Code)

		var resp CreateIntentResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.DonationID)
		assert.Equal(t, "pi_new_secret", resp.ClientSecret)
		assert.Equal(t, string(domain.StatusPending), resp.Status)
	})

	t.Run("отсутствует сумма — 400, шлюз не вызывается", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-1")

		w := doJSON(r, http.MethodPost, "/api/v1/donations/intent", gin.H{
			"currency": "usd",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		gw.AssertNotCalled(t, "CreateIntent")
	})

	t.Run("неподдерживаемая валюта — 400", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-1")

		w := doJSON(r, http.MethodPost, "/api/v1/donations/intent", gin.H{
			"amount":   1000,
			"currency": "jpy",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
		gw.AssertNotCalled(t, "CreateIntent")
	})

	t.Run("шлюз недоступен — 503", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-1")

		gw.On("CreateIntent", mock.Anything, mock.Anything).
			Return(nil, domain.ErrGatewayUnavailable).Once()

		w := doJSON(r, http.MethodPost, "/api/v1/donations/intent", gin.H{
			"amount":   1000,
			"currency": "usd",
		})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "gateway_unavailable")
		repo.AssertNotCalled(t, "Create")
	})
}

func TestDonationHandler_Confirm(t *testing.T) {
	t.Run("подтверждение успешного платежа — 200", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-1")

		d := &domain.Donation{
			ID:               "donation-1",
			DonorID:          "donor-1",
			Amount:           2500,
			Currency:         "usd",
			ExternalIntentID: "pi_1",
			Status:           domain.StatusPending,
		}
		chargeID := "ch_1"
		repo.On("GetByIntentID", mock.Anything, "pi_1").Return(d, nil)
		gw.On("RetrieveIntent", mock.Anything, "pi_1").Return(&gateway.RetrieveIntentResult{
			IntentID: "pi_1",
			Status:   gateway.IntentStatusSucceeded,
			ChargeID: &chargeID,
		}, nil).Once()
		repo.On("ApplyTransition", mock.Anything, mock.AnythingOfType("*domain.Donation"),
			domain.StatusSucceeded, mock.AnythingOfType("*string"), mock.AnythingOfType("*outbox.Outbox")).
			Return(true, nil).Once()

		w := doJSON(r, http.MethodPost, "/api/v1/donations/confirm", gin.H{
			"intent_id": "pi_1",
		})

		require.Equal(t, http.StatusOK, w.Code)

		var view DonationView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, string(domain.StatusSucceeded), view.Status)
		assert.Equal(t, &chargeID, view.ChargeID)
	})

	t.Run("чужое пожертвование — 403", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-2")

		d := &domain.Donation{
			ID:               "donation-1",
			DonorID:          "donor-1",
			ExternalIntentID: "pi_1",
			Status:           domain.StatusPending,
		}
		repo.On("GetByIntentID", mock.Anything, "pi_1").Return(d, nil).Once()

		w := doJSON(r, http.MethodPost, "/api/v1/donations/confirm", gin.H{
			"intent_id": "pi_1",
		})

		assert.Equal(t, http.StatusForbidden, w.Code)
		gw.AssertNotCalled(t, "RetrieveIntent")
	})

	t.Run("неизвестное намерение — 404", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-1")

		repo.On("GetByIntentID", mock.Anything, "pi_missing").
			Return(nil, domain.ErrDonationNotFound).Once()

		w := doJSON(r, http.MethodPost, "/api/v1/donations/confirm", gin.H{
			"intent_id": "pi_missing",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDonationHandler_List(t *testing.T) {
	t.Run("страница с фильтром по статусу", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-1")

		succeeded := domain.StatusSucceeded
		repo.On("ListByDonor", mock.Anything, "donor-1", &succeeded, 0, 10).
			Return([]*domain.Donation{
				{ID: "donation-1", DonorID: "donor-1", Status: domain.StatusSucceeded},
			}, int64(1), nil).Once()

		w := doJSON(r, http.MethodGet, "/api/v1/donations?limit=10&status=SUCCEEDED", nil)

		require.Equal(t, http.StatusOK, w.Code)

		var resp ListDonationsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Donations, 1)
		assert.Equal(t, int64(1), resp.TotalCount)
		assert.Equal(t, 1, resp.Page)
		assert.Equal(t, 10, resp.Limit)
	})

	t.Run("неизвестный статус — 400", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-1")

		w := doJSON(r, http.MethodGet, "/api/v1/donations?status=REFUNDED", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "ListByDonor")
	})
}

func TestDonationHandler_GetByID(t *testing.T) {
	t.Run("чужое пожертвование — 404, существование не раскрывается", func(t *testing.T) {
		repo := new(mockRepo)
		gw := new(mockGateway)
		r := setupDonationRouter(t, repo, gw, "donor-2")

		repo.On("GetByID", mock.Anything, "donation-1").Return(&domain.Donation{
			ID:      "donation-1",
			DonorID: "donor-1",
			Status:  domain.StatusSucceeded,
		}, nil).Once()

		w := doJSON(r, http.MethodGet, "/api/v1/donations/donation-1", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
