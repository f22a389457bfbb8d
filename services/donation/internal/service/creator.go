package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/gateway"
	"example.com/pet-adoption/services/donation/internal/repository"
)

// =============================================================================
// IntentCreator
// =============================================================================

// CreateDonationRequest — запрос на создание пожертвования.
type CreateDonationRequest struct {
	DonorID  string // ID донора (из JWT, не из body)
	Amount   int64  // Сумма в минимальных единицах валюты
	Currency string // Код валюты ISO 4217
	Message  string // Сообщение донора приюту (опционально)
}

// CreateDonationResult — результат создания пожертвования.
type CreateDonationResult struct {
	Donation     *domain.Donation
	ClientSecret string // Секрет для подтверждения платежа на клиенте
}

// DonationLimits — бизнес-лимиты пожертвований (из конфигурации).
type DonationLimits struct {
	MaxAmount        int64             // Максимальная сумма в минимальных единицах
	SupportsCurrency func(string) bool // Проверка поддержки валюты
}

// IntentCreator создаёт пожертвование и платёжное намерение в шлюзе.
type IntentCreator struct {
	repo    repository.DonationRepository
	gateway gateway.PaymentGateway
	limits  DonationLimits
}

// NewIntentCreator создаёт сервис создания пожертвований.
func NewIntentCreator(repo repository.DonationRepository, gw gateway.PaymentGateway, limits DonationLimits) *IntentCreator {
	return &IntentCreator{
		repo:    repo,
		gateway: gw,
		limits:  limits,
	}
}

// Create валидирует запрос, создаёт намерение в шлюзе и сохраняет
// пожертвование в статусе PENDING.
//
// Порядок важен: сначала шлюз, потом БД. Если запись в БД упадёт,
// в шлюзе останется осиротевшее намерение — оно истечёт само и денег
// не спишет (клиент не получит client_secret). Обратный порядок оставил бы
// запись без намерения, которую нечем подтвердить.
func (c *IntentCreator) Create(ctx context.Context, req CreateDonationRequest) (*CreateDonationResult, error) {
	log := logger.FromContext(ctx)

	donation := &domain.Donation{
		ID:       uuid.New().String(),
		DonorID:  req.DonorID,
		Amount:   req.Amount,
		Currency: strings.ToLower(req.Currency),
		Status:   domain.StatusPending,
		Version:  0,
		Message:  strings.TrimSpace(req.Message),
	}

	if err := donation.Validate(c.limits.MaxAmount, c.limits.SupportsCurrency); err != nil {
		return nil, err
	}

	intent, err := c.gateway.CreateIntent(ctx, gateway.CreateIntentParams{
		DonationID: donation.ID,
		DonorID:    donation.DonorID,
		Amount:     donation.Amount,
		Currency:   donation.Currency,
	})
	if err != nil {
		return nil, err
	}

	donation.ExternalIntentID = intent.IntentID

	if err := c.repo.Create(ctx, donation); err != nil {
		log.Error().
			Err(err).
			Str("donation_id", donation.ID).
			Str("intent_id", intent.IntentID).
			Msg("Намерение создано в шлюзе, но запись в БД не удалась: намерение осиротеет")
		return nil, err
	}

	log.Info().
		Str("donation_id", donation.ID).
		Str("donor_id", donation.DonorID).
		Str("intent_id", intent.IntentID).
		Int64("amount", donation.Amount).
		Str("currency", donation.Currency).
		Msg("Пожертвование создано")

	return &CreateDonationResult{
		Donation:     donation,
		ClientSecret: intent.ClientSecret,
	}, nil
}
