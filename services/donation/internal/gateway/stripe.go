package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"example.com/pet-adoption/pkg/circuitbreaker"
	"example.com/pet-adoption/pkg/logger"
	"example.com/pet-adoption/pkg/metrics"
	"example.com/pet-adoption/services/donation/internal/domain"
)

// StripeConfig — настройки Stripe-шлюза.
type StripeConfig struct {
	SecretKey      string        // Секретный API ключ (sk_...)
	WebhookSecret  string        // Секрет подписи webhook (whsec_...)
	RequestTimeout time.Duration // Таймаут запросов к API
}

// StripeGateway — реализация PaymentGateway и WebhookVerifier поверх Stripe.
// Вызовы API защищены Circuit Breaker: при длительной недоступности Stripe
// запросы отклоняются мгновенно с domain.ErrGatewayUnavailable.
type StripeGateway struct {
	api     *client.API
	breaker *circuitbreaker.Breaker
	cfg     StripeConfig
}

// NewStripeGateway создаёт шлюз Stripe.
func NewStripeGateway(cfg StripeConfig, breaker *circuitbreaker.Breaker) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeGateway{
		api:     api,
		breaker: breaker,
		cfg:     cfg,
	}
}

// CreateIntent создаёт PaymentIntent в Stripe.
// DonationID и DonorID уходят в metadata — для сверки и ручных расследований.
func (g *StripeGateway) CreateIntent(ctx context.Context, p CreateIntentParams) (*CreateIntentResult, error) {
	log := logger.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("donation_id", p.DonationID)
	params.AddMetadata("donor_id", p.DonorID)

	var intent *stripe.PaymentIntent
	start := time.Now()
	err := g.breaker.Do(func() error {
		var apiErr error
		intent, apiErr = g.api.PaymentIntents.New(params)
		return apiErr
	})
	g.recordCall("create_intent", start, err)

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			log.Warn().Str("donation_id", p.DonationID).Msg("Stripe недоступен: circuit breaker открыт")
			return nil, domain.ErrGatewayUnavailable
		}
		log.Error().Err(err).Str("donation_id", p.DonationID).Msg("Ошибка создания PaymentIntent в Stripe")
		return nil, fmt.Errorf("%w: %s", domain.ErrIntentCreation, err)
	}

	log.Info().
		Str("donation_id", p.DonationID).
		Str("intent_id", intent.ID).
		Int64("amount", p.Amount).
		Str("currency", p.Currency).
		Msg("PaymentIntent создан в Stripe")

	return &CreateIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// RetrieveIntent запрашивает актуальное состояние PaymentIntent у Stripe.
func (g *StripeGateway) RetrieveIntent(ctx context.Context, intentID string) (*RetrieveIntentResult, error) {
	log := logger.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}

	var intent *stripe.PaymentIntent
	start := time.Now()
	err := g.breaker.Do(func() error {
		var apiErr error
		intent, apiErr = g.api.PaymentIntents.Get(intentID, params)
		return apiErr
	})
	g.recordCall("retrieve_intent", start, err)

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			log.Warn().Str("intent_id", intentID).Msg("Stripe недоступен: circuit breaker открыт")
			return nil, domain.ErrGatewayUnavailable
		}
		log.Error().Err(err).Str("intent_id", intentID).Msg("Ошибка запроса PaymentIntent из Stripe")
		return nil, fmt.Errorf("%w: %s", domain.ErrGatewayUnavailable, err)
	}

	return &RetrieveIntentResult{
		IntentID: intent.ID,
		Status:   mapIntentStatus(intent),
		ChargeID: chargeID(intent),
	}, nil
}

// VerifyAndParse проверяет подпись webhook и нормализует событие Stripe.
func (g *StripeGateway) VerifyAndParse(payload []byte, signature string) (*domain.GatewayEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedPayload, err)
	}

	return normalizeEvent(&event)
}

// recordCall записывает метрику вызова Stripe API.
func (g *StripeGateway) recordCall(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordGatewayRequest(operation, status, time.Since(start))
}

// isSignatureError определяет, является ли ошибка ConstructEvent ошибкой подписи.
func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrTooOld)
}

// normalizeEvent преобразует событие Stripe в доменное.
// Неизвестные типы событий нормализуются в EventUnknown и дальше игнорируются.
func normalizeEvent(event *stripe.Event) (*domain.GatewayEvent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedPayload, err)
	}

	result := &domain.GatewayEvent{
		EventID:  event.ID,
		IntentID: pi.ID,
		ChargeID: chargeID(&pi),
	}

	switch event.Type {
	case "payment_intent.succeeded":
		result.Type = domain.EventIntentSucceeded
	case "payment_intent.payment_failed":
		result.Type = domain.EventIntentFailed
	case "payment_intent.canceled":
		result.Type = domain.EventIntentCanceled
	case "payment_intent.created":
		result.Type = domain.EventIntentCreated
	default:
		result.Type = domain.EventUnknown
	}

	return result, nil
}

// mapIntentStatus нормализует статус PaymentIntent.
// requires_payment_method с last_payment_error означает отклонённый платёж;
// без ошибки — платёж ещё не подтверждён клиентом (processing).
func mapIntentStatus(intent *stripe.PaymentIntent) IntentStatus {
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentStatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			return IntentStatusFailed
		}
		return IntentStatusProcessing
	default:
		// processing, requires_action, requires_confirmation, requires_capture
		return IntentStatusProcessing
	}
}

// chargeID извлекает ID списания из PaymentIntent.
func chargeID(intent *stripe.PaymentIntent) *string {
	if intent.LatestCharge == nil || intent.LatestCharge.ID == "" {
		return nil
	}
	id := intent.LatestCharge.ID
	return &id
}
