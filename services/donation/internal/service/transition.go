// Package service содержит бизнес-логику Donation Service.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"example.com/pet-adoption/pkg/kafka"
	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/pkg/metrics"
	"example.com/pet-adoption/pkg/outbox"
	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/repository"
)

// =============================================================================
// Конфигурация
// =============================================================================

const (
	// aggregateTypeDonation — тип агрегата в таблице outbox.
	aggregateTypeDonation = "donation"

	// maxTransitionRetries — максимум попыток CAS при конкурентных переходах.
	// Одного повтора обычно достаточно: после проигрыша гонки статус терминален.
	maxTransitionRetries = 3
)

// =============================================================================
// TransitionEngine
// =============================================================================

// TransitionEngine — единственная точка смены статуса пожертвования.
// Оба пути подтверждения (confirm и webhook) проходят через Apply:
// никакой другой код статус не меняет.
//
// Гарантии:
//   - переходы только PENDING -> терминал, терминальные статусы неизменяемы
//   - конкурентные переходы сериализуются условным UPDATE по (id, version)
//   - уведомление в Kafka фиксируется в одной транзакции с переходом (outbox)
type TransitionEngine struct {
	repo repository.DonationRepository
}

// NewTransitionEngine создаёт движок переходов.
func NewTransitionEngine(repo repository.DonationRepository) *TransitionEngine {
	return &TransitionEngine{repo: repo}
}

// statusEventPayload — payload уведомления о смене статуса (уходит в Kafka).
type statusEventPayload struct {
	DonationID string    `json:"donation_id"`
	DonorID    string    `json:"donor_id"`
	IntentID   string    `json:"intent_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	ChargeID   *string   `json:"charge_id,omitempty"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Apply применяет переход статуса для пожертвования с указанным intent_id.
//
// Идемпотентность: если пожертвование уже в целевом (или ином терминальном)
// статусе — возвращается текущее состояние с Applied=false без ошибки.
// Повторная доставка webhook и гонка confirm/webhook сводятся к no-op.
func (e *TransitionEngine) Apply(ctx context.Context, intentID string, target domain.DonationStatus, chargeID *string) (*domain.TransitionResult, error) {
	log := logger.FromContext(ctx)

	d, err := e.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		oldStatus := d.Status

		// Терминальный статус неизменяем: любой дальнейший переход — no-op
		if !d.Status.CanTransitionTo(target) {
			if !d.IsTerminal() {
				// PENDING -> PENDING и прочие недопустимые нетерминальные переходы
				log.Warn().
					Str("donation_id", d.ID).
					Str("from", string(d.Status)).
					Str("to", string(target)).
					Msg("Недопустимый переход статуса проигнорирован")
			}
			metrics.RecordTransition(string(oldStatus), string(target), false)
			return &domain.TransitionResult{
				Donation:  d,
				OldStatus: oldStatus,
				NewStatus: d.Status,
				Applied:   false,
			}, nil
		}

		record, err := e.buildOutboxRecord(ctx, d, target, chargeID)
		if err != nil {
			return nil, err
		}

		applied, err := e.repo.ApplyTransition(ctx, d, target, chargeID, record)
		if err != nil {
			return nil, err
		}

		if applied {
			metrics.RecordTransition(string(oldStatus), string(target), true)
			log.Info().
				Str("donation_id", d.ID).
				Str("intent_id", intentID).
				Str("from", string(oldStatus)).
				Str("to", string(target)).
				Int64("version", d.Version+1).
				Msg("Статус пожертвования изменён")

			d.Status = target
			d.Version++
			if chargeID != nil {
				d.ExternalChargeID = chargeID
			}

			return &domain.TransitionResult{
				Donation:  d,
				OldStatus: oldStatus,
				NewStatus: target,
				Applied:   true,
			}, nil
		}

		// Проиграли гонку: перечитываем актуальное состояние и пробуем снова
		log.Debug().
			Str("donation_id", d.ID).
			Int("attempt", attempt+1).
			Msg("Конкурентный переход: перечитываем состояние")

		d, err = e.repo.GetByIntentID(ctx, intentID)
		if err != nil {
			return nil, err
		}
	}

	// Лимит попыток исчерпан — возвращаем актуальное состояние как no-op
	metrics.RecordTransition(string(d.Status), string(target), false)
	return &domain.TransitionResult{
		Donation:  d,
		OldStatus: d.Status,
		NewStatus: d.Status,
		Applied:   false,
	}, nil
}

// buildOutboxRecord собирает запись outbox для уведомления о переходе.
func (e *TransitionEngine) buildOutboxRecord(ctx context.Context, d *domain.Donation, target domain.DonationStatus, chargeID *string) (*outbox.Outbox, error) {
	payload, err := json.Marshal(statusEventPayload{
		DonationID: d.ID,
		DonorID:    d.DonorID,
		IntentID:   d.ExternalIntentID,
		OldStatus:  string(d.Status),
		NewStatus:  string(target),
		ChargeID:   chargeID,
		Amount:     d.Amount,
		Currency:   d.Currency,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		headers[kafka.HeaderTraceID] = traceID
	}

	return &outbox.Outbox{
		ID:            uuid.New().String(),
		AggregateType: aggregateTypeDonation,
		AggregateID:   d.ID,
		EventType:     "donation.status." + string(target),
		Topic:         kafka.TopicDonationStatus,
		MessageKey:    d.ID,
		Payload:       payload,
		Headers:       headers,
	}, nil
}
