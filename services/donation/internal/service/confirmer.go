package service

import (
	"context"

	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/gateway"
	"example.com/pet-adoption/services/donation/internal/repository"
)

// =============================================================================
// PaymentConfirmer
// =============================================================================

// PaymentConfirmer подтверждает платёж по запросу клиента.
//
// Клиенту не доверяем: фактический исход платежа запрашивается у шлюза,
// параметры запроса клиента на результат не влияют.
type PaymentConfirmer struct {
	repo    repository.DonationRepository
	gateway gateway.PaymentGateway
	engine  *TransitionEngine
}

// NewPaymentConfirmer создаёт сервис подтверждения платежей.
func NewPaymentConfirmer(repo repository.DonationRepository, gw gateway.PaymentGateway, engine *TransitionEngine) *PaymentConfirmer {
	return &PaymentConfirmer{
		repo:    repo,
		gateway: gw,
		engine:  engine,
	}
}

// Confirm запрашивает у шлюза актуальный статус намерения и применяет переход.
//
// donorID — владелец из JWT: подтверждать чужое пожертвование нельзя.
// Пожертвование в терминальном статусе возвращается как есть, без
// обращения к шлюзу: webhook мог успеть раньше.
func (c *PaymentConfirmer) Confirm(ctx context.Context, intentID, donorID string) (*domain.Donation, error) {
	log := logger.FromContext(ctx)

	d, err := c.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if donorID != "" && d.DonorID != donorID {
		log.Warn().
			Str("donation_id", d.ID).
			Str("donor_id", donorID).
			Msg("Попытка подтвердить чужое пожертвование")
		return nil, domain.ErrAccessDenied
	}

	// Терминальный статус — исход уже известен, шлюз не опрашиваем
	if d.IsTerminal() {
		log.Debug().
			Str("donation_id", d.ID).
			Str("status", string(d.Status)).
			Msg("Подтверждение пожертвования в терминальном статусе: no-op")
		return d, nil
	}

	// Источник истины — шлюз, не клиент
	intent, err := c.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	target, ok := intent.Status.TargetStatus()
	if !ok {
		// Платёж ещё в обработке: статус не меняем, клиент повторит позже
		log.Debug().
			Str("donation_id", d.ID).
			Str("gateway_status", string(intent.Status)).
			Msg("Платёж ещё в обработке, пожертвование остаётся PENDING")
		return d, nil
	}

	result, err := c.engine.Apply(ctx, intentID, target, intent.ChargeID)
	if err != nil {
		return nil, err
	}

	return result.Donation, nil
}
