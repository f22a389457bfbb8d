// Package service — общие моки для unit тестов бизнес-логики.
package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/pet-adoption/pkg/outbox"
	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/gateway"
)

// =============================================================================
// Мок DonationRepository
// =============================================================================

type mockDonationRepository struct {
	mock.Mock
}

func (m *mockDonationRepository) Create(ctx context.Context, d *domain.Donation) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDonationRepository) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Donation), args.Error(1)
}

func (m *mockDonationRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Donation, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Donation), args.Error(1)
}

func (m *mockDonationRepository) ListByDonor(ctx context.Context, donorID string, status *domain.DonationStatus, offset, limit int) ([]*domain.Donation, int64, error) {
	args := m.Called(ctx, donorID, status, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Donation), args.Get(1).(int64), args.Error(2)
}

func (m *mockDonationRepository) ApplyTransition(ctx context.Context, d *domain.Donation, target domain.DonationStatus, chargeID *string, record *outbox.Outbox) (bool, error) {
	args := m.Called(ctx, d, target, chargeID, record)
	return args.Bool(0), args.Error(1)
}

// =============================================================================
// Мок PaymentGateway
// =============================================================================

type mockPaymentGateway struct {
	mock.Mock
}

func (m *mockPaymentGateway) CreateIntent(ctx context.Context, params gateway.CreateIntentParams) (*gateway.CreateIntentResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreateIntentResult), args.Error(1)
}

func (m *mockPaymentGateway) RetrieveIntent(ctx context.Context, intentID string) (*gateway.RetrieveIntentResult, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RetrieveIntentResult), args.Error(1)
}

// =============================================================================
// Мок WebhookVerifier
// =============================================================================

type mockWebhookVerifier struct {
	mock.Mock
}

func (m *mockWebhookVerifier) VerifyAndParse(payload []byte, signature string) (*domain.GatewayEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayEvent), args.Error(1)
}

// =============================================================================
// Вспомогательные фабрики
// =============================================================================

// pendingDonation возвращает PENDING пожертвование для тестов.
func pendingDonation() *domain.Donation {
	return &domain.Donation{
		ID:               "donation-1",
		DonorID:          "donor-1",
		Amount:           2500,
		Currency:         "usd",
		ExternalIntentID: "pi_1",
		Status:           domain.StatusPending,
		Version:          0,
	}
}

// terminalDonation возвращает пожертвование в указанном терминальном статусе.
func terminalDonation(status domain.DonationStatus) *domain.Donation {
	d := pendingDonation()
	d.Status = status
	d.Version = 1
	return d
}

func strPtr(s string) *string {
	return &s
}
