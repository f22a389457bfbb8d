package service

import (
	"context"
	"errors"

	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/pkg/metrics"
	"example.com/pet-adoption/services/donation/internal/domain"
	"example.com/pet-adoption/services/donation/internal/gateway"
)

// =============================================================================
// WebhookProcessor
// =============================================================================

// WebhookResult — исход обработки webhook-события.
type WebhookResult string

const (
	// WebhookApplied — событие применено, статус пожертвования изменён.
	WebhookApplied WebhookResult = "applied"

	// WebhookIgnored — событие валидно, но перехода не влечёт
	// (информационное, неизвестный тип или переход уже применён).
	WebhookIgnored WebhookResult = "ignored"

	// WebhookDuplicate — событие уже обработано ранее.
	WebhookDuplicate WebhookResult = "duplicate"

	// WebhookUnknownIntent — намерение не найдено в БД.
	// Подтверждается шлюзу (200), чтобы остановить бессмысленные ретраи.
	WebhookUnknownIntent WebhookResult = "unknown_intent"
)

// DedupStore — хранилище обработанных событий (Redis).
type DedupStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// WebhookProcessor обрабатывает webhook-уведомления платёжного шлюза.
//
// Конвейер: подпись -> парсинг -> дедупликация -> поиск пожертвования ->
// переход статуса -> пометка события обработанным.
type WebhookProcessor struct {
	verifier gateway.WebhookVerifier
	engine   *TransitionEngine
	dedup    DedupStore
}

// NewWebhookProcessor создаёт обработчик webhook.
func NewWebhookProcessor(verifier gateway.WebhookVerifier, engine *TransitionEngine, dedup DedupStore) *WebhookProcessor {
	return &WebhookProcessor{
		verifier: verifier,
		engine:   engine,
		dedup:    dedup,
	}
}

// Process обрабатывает сырое webhook-событие.
//
// Ошибки:
//   - domain.ErrInvalidSignature — подпись невалидна (HTTP 401, без ретраев)
//   - domain.ErrMalformedPayload — payload нечитаем (HTTP 400, без ретраев)
//   - прочие ошибки — внутренний сбой (HTTP 5xx, шлюз доставит событие повторно)
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	log := logger.FromContext(ctx)

	// 1-2. Подпись и парсинг: невалидные запросы отбрасываем до любых записей
	event, err := p.verifier.VerifyAndParse(payload, signature)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			log.Warn().Err(err).Msg("Webhook с невалидной подписью отклонён")
			metrics.RecordWebhookEvent("unknown", "rejected")
		} else {
			log.Warn().Err(err).Msg("Webhook с нечитаемым payload отклонён")
			metrics.RecordWebhookEvent("unknown", "error")
		}
		return "", err
	}

	eventType := string(event.Type)
	log = log.With().
		Str("event_id", event.EventID).
		Str("event_type", eventType).
		Str("intent_id", event.IntentID).
		Logger()

	// 3. Дедупликация: повторно доставленное событие подтверждаем без обработки.
	// Недоступный Redis обработку не блокирует: повторное применение события
	// безопасно, переход статуса идемпотентен.
	seen, err := p.dedup.Seen(ctx, event.EventID)
	if err != nil {
		log.Warn().Err(err).Msg("Дедупликация недоступна, событие обрабатывается без проверки")
	} else if seen {
		log.Debug().Msg("Повторно доставленное событие проигнорировано")
		metrics.RecordWebhookEvent(eventType, string(WebhookDuplicate))
		return WebhookDuplicate, nil
	}

	// 4. События без перехода (информационные, неизвестные) подтверждаем сразу
	target, ok := event.TargetStatus()
	if !ok {
		p.markProcessed(ctx, event.EventID)
		log.Debug().Msg("Событие не влечёт переход статуса")
		metrics.RecordWebhookEvent(eventType, string(WebhookIgnored))
		return WebhookIgnored, nil
	}

	// 5. Применяем переход
	result, err := p.engine.Apply(ctx, event.IntentID, target, event.ChargeID)
	if err != nil {
		if errors.Is(err, domain.ErrDonationNotFound) {
			// Намерение не из нашей системы (другое окружение, ручной платёж).
			// Подтверждаем шлюзу: ретраи ничего не изменят.
			log.Warn().Msg("Webhook для неизвестного намерения подтверждён без обработки")
			metrics.RecordWebhookEvent(eventType, string(WebhookUnknownIntent))
			return WebhookUnknownIntent, nil
		}
		// Внутренний сбой: событие НЕ помечаем обработанным, шлюз доставит повторно
		log.Error().Err(err).Msg("Ошибка применения перехода из webhook")
		metrics.RecordWebhookEvent(eventType, "error")
		return "", err
	}

	// 6. Помечаем событие обработанным только после успешного применения
	p.markProcessed(ctx, event.EventID)

	if result.Applied {
		log.Info().
			Str("donation_id", result.Donation.ID).
			Str("from", string(result.OldStatus)).
			Str("to", string(result.NewStatus)).
			Msg("Webhook применён: статус пожертвования изменён")
		metrics.RecordWebhookEvent(eventType, string(WebhookApplied))
		return WebhookApplied, nil
	}

	log.Debug().
		Str("donation_id", result.Donation.ID).
		Str("status", string(result.Donation.Status)).
		Msg("Webhook не повлёк переход: статус уже терминален")
	metrics.RecordWebhookEvent(eventType, string(WebhookIgnored))
	return WebhookIgnored, nil
}

// markProcessed помечает событие обработанным.
// Ошибка Redis не фатальна: в худшем случае событие обработается повторно,
// что безопасно благодаря идемпотентности переходов.
func (p *WebhookProcessor) markProcessed(ctx context.Context, eventID string) {
	if err := p.dedup.Mark(ctx, eventID); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("event_id", eventID).
			Msg("Не удалось пометить событие обработанным")
	}
}
