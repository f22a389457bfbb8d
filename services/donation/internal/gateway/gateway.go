// Package gateway — интеграция с платёжным шлюзом.
// Бизнес-логика зависит только от интерфейсов этого пакета:
// формат конкретного шлюза (Stripe) не выходит за границу пакета.
package gateway

import (
	"context"

	"example.com/pet-adoption/services/donation/internal/domain"
)

// IntentStatus — нормализованный статус платёжного намерения в шлюзе.
type IntentStatus string

const (
	IntentStatusProcessing IntentStatus = "processing" // Платёж ещё в обработке
	IntentStatusSucceeded  IntentStatus = "succeeded"  // Деньги списаны
	IntentStatusFailed     IntentStatus = "failed"     // Платёж отклонён
	IntentStatusCanceled   IntentStatus = "canceled"   // Намерение отменено
)

// TargetStatus возвращает целевой статус пожертвования для статуса шлюза.
// Второе значение false — статус не влечёт переход (платёж ещё в обработке).
func (s IntentStatus) TargetStatus() (domain.DonationStatus, bool) {
	switch s {
	case IntentStatusSucceeded:
		return domain.StatusSucceeded, true
	case IntentStatusFailed:
		return domain.StatusFailed, true
	case IntentStatusCanceled:
		return domain.StatusCanceled, true
	}
	return "", false
}

// CreateIntentParams — параметры создания платёжного намерения.
type CreateIntentParams struct {
	DonationID string // UUID пожертвования (уходит в metadata шлюза)
	DonorID    string // ID донора (уходит в metadata шлюза)
	Amount     int64  // Сумма в минимальных единицах валюты
	Currency   string // Код валюты ISO 4217
}

// CreateIntentResult — результат создания платёжного намерения.
type CreateIntentResult struct {
	IntentID     string // ID намерения в шлюзе
	ClientSecret string // Секрет для подтверждения платежа на клиенте
}

// RetrieveIntentResult — актуальное состояние намерения в шлюзе.
// Источник истины при подтверждении платежа: клиенту не доверяем.
type RetrieveIntentResult struct {
	IntentID string
	Status   IntentStatus
	ChargeID *string // ID списания (есть только у успешных платежей)
}

// PaymentGateway — операции платёжного шлюза.
type PaymentGateway interface {
	// CreateIntent создаёт платёжное намерение в шлюзе.
	CreateIntent(ctx context.Context, params CreateIntentParams) (*CreateIntentResult, error)

	// RetrieveIntent запрашивает актуальное состояние намерения у шлюза.
	RetrieveIntent(ctx context.Context, intentID string) (*RetrieveIntentResult, error)
}

// WebhookVerifier проверяет подпись webhook и нормализует событие.
type WebhookVerifier interface {
	// VerifyAndParse проверяет подпись и разбирает payload.
	// Возвращает domain.ErrInvalidSignature при невалидной подписи,
	// domain.ErrMalformedPayload при нечитаемом payload.
	VerifyAndParse(payload []byte, signature string) (*domain.GatewayEvent, error)
}
