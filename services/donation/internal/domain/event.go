package domain

// EventType — тип события платёжного шлюза после нормализации.
// Сырые типы шлюза (payment_intent.succeeded и т.п.) маппятся в эти значения
// на границе gateway-слоя: бизнес-логика не знает про формат конкретного шлюза.
type EventType string

const (
	EventIntentCreated   EventType = "intent.created"   // Намерение создано (информационное)
	EventIntentSucceeded EventType = "intent.succeeded" // Списание прошло
	EventIntentFailed    EventType = "intent.failed"    // Платёж отклонён
	EventIntentCanceled  EventType = "intent.canceled"  // Намерение отменено
	EventUnknown         EventType = "unknown"          // Тип не распознан (игнорируется)
)

// GatewayEvent — нормализованное webhook-событие платёжного шлюза.
type GatewayEvent struct {
	EventID  string    // Уникальный ID события в шлюзе (для дедупликации)
	Type     EventType // Нормализованный тип
	IntentID string    // ID платёжного намерения, к которому относится событие
	ChargeID *string   // ID списания (есть только у успешных платежей)
}

// TargetStatus возвращает целевой статус пожертвования для события.
// Второе значение false — событие не влечёт переход (информационное или неизвестное).
func (e *GatewayEvent) TargetStatus() (DonationStatus, bool) {
	switch e.Type {
	case EventIntentSucceeded:
		return StatusSucceeded, true
	case EventIntentFailed:
		return StatusFailed, true
	case EventIntentCanceled:
		return StatusCanceled, true
	}
	return "", false
}

// TransitionResult — результат попытки перехода статуса.
type TransitionResult struct {
	Donation  *Donation      // Состояние после попытки (перечитанное при конфликте)
	OldStatus DonationStatus // Статус до попытки
	NewStatus DonationStatus // Фактический статус после попытки
	Applied   bool           // true — переход применён этим вызовом
}
