// Package domain содержит бизнес-сущности Donation Service.
package domain

import (
	"time"
)

// DonationStatus — статус пожертвования.
type DonationStatus string

const (
	StatusPending   DonationStatus = "PENDING"   // Платёж инициирован, ждём подтверждения шлюза
	StatusSucceeded DonationStatus = "SUCCEEDED" // Деньги списаны
	StatusFailed    DonationStatus = "FAILED"    // Платёж отклонён шлюзом
	StatusCanceled  DonationStatus = "CANCELED"  // Платёж отменён до списания
)

// IsTerminal возвращает true для конечных статусов.
// Конечный статус не меняется никогда, ни при каких событиях.
func (s DonationStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// IsValid проверяет, что статус — один из известных.
func (s DonationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// allowedTransitions — граф допустимых переходов статусов.
// Единственный источник истины: все переходы идут из PENDING в терминал.
var allowedTransitions = map[DonationStatus][]DonationStatus{
	StatusPending:   {StatusSucceeded, StatusFailed, StatusCanceled},
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusCanceled:  {},
}

// CanTransitionTo проверяет допустимость перехода из текущего статуса в целевой.
func (s DonationStatus) CanTransitionTo(target DonationStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Donation — пожертвование на содержание животных приюта.
//
// Version — счётчик оптимистичной блокировки: каждый применённый переход
// статуса увеличивает его на 1. Конкурентные переходы сериализуются через
// условный UPDATE по (id, version).
type Donation struct {
	ID               string         `json:"id"`                           // UUID пожертвования
	DonorID          string         `json:"donor_id"`                     // ID пользователя-донора
	Amount           int64          `json:"amount"`                       // Сумма в минимальных единицах валюты (центы)
	Currency         string         `json:"currency"`                     // Код валюты ISO 4217, нижний регистр
	ExternalIntentID string         `json:"external_intent_id"`           // ID платёжного намерения в шлюзе
	ExternalChargeID *string        `json:"external_charge_id,omitempty"` // ID списания в шлюзе (после успеха)
	Status           DonationStatus `json:"status"`                       // Текущий статус
	Version          int64          `json:"version"`                      // Версия для оптимистичной блокировки
	Message          string         `json:"message,omitempty"`            // Сообщение донора приюту (опционально)
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsTerminal возвращает true, если пожертвование в конечном статусе.
func (d *Donation) IsTerminal() bool {
	return d.Status.IsTerminal()
}

// Validate проверяет бизнес-правила пожертвования.
func (d *Donation) Validate(maxAmount int64, supportsCurrency func(string) bool) error {
	if d.DonorID == "" {
		return ErrDonorRequired
	}
	if d.Amount <= 0 {
		return ErrInvalidAmount
	}
	if d.Amount > maxAmount {
		return ErrAmountTooLarge
	}
	if !supportsCurrency(d.Currency) {
		return ErrUnsupportedCurrency
	}
	if len(d.Message) > maxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// maxMessageLength — максимальная длина сообщения донора.
const maxMessageLength = 500
