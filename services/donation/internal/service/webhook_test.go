package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/pet-adoption/services/donation/internal/dedup"
	"example.com/pet-adoption/services/donation/internal/domain"
)

// setupWebhookProcessor собирает процессор с реальным dedup-хранилищем на miniredis.
func setupWebhookProcessor(t *testing.T) (*WebhookProcessor, *mockWebhookVerifier, *mockDonationRepository, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "не удалось запустить miniredis")
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := dedup.NewStore(client, 72*time.Hour)

	verifier := new(mockWebhookVerifier)
	repo := new(mockDonationRepository)
	processor := NewWebhookProcessor(verifier, NewTransitionEngine(repo), store)

	return processor, verifier, repo, mr
}

func succeededEvent(eventID string) *domain.GatewayEvent {
	return &domain.GatewayEvent{
		EventID:  eventID,
		Type:     domain.EventIntentSucceeded,
		IntentID: "pi_1",
		ChargeID: strPtr("ch_1"),
	}
}

// TestWebhookProcessor_Process_Applied проверяет успешное применение события.
func TestWebhookProcessor_Process_Applied(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, mr := setupWebhookProcessor(t)

	payload := []byte(`{"id":"evt_1"}`)
	verifier.On("VerifyAndParse", payload, "sig").Return(succeededEvent("evt_1"), nil).Once()

	d := pendingDonation()
	repo.On("GetByIntentID", ctx, "pi_1").Return(d, nil)
	repo.On("ApplyTransition", ctx, mock.AnythingOfType("*domain.Donation"), domain.StatusSucceeded,
		mock.AnythingOfType("*string"), mock.AnythingOfType("*outbox.Outbox")).
		Return(true, nil).Once()

	result, err := processor.Process(ctx, payload, "sig")

	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, result)
	// Событие должно быть помечено обработанным
	assert.True(t, mr.Exists("donation:webhook:event:evt_1"),
		"событие должно попасть в хранилище дедупликации")
}

// TestWebhookProcessor_Process_Duplicate проверяет дедупликацию повторной доставки.
func TestWebhookProcessor_Process_Duplicate(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, _ := setupWebhookProcessor(t)

	payload := []byte(`{"id":"evt_1"}`)

	// Первая доставка: событие применяется
	verifier.On("VerifyAndParse", payload, "sig").Return(succeededEvent("evt_1"), nil)
	d := pendingDonation()
	repo.On("GetByIntentID", ctx, "pi_1").Return(d, nil)
	repo.On("ApplyTransition", ctx, mock.AnythingOfType("*domain.Donation"), domain.StatusSucceeded,
		mock.AnythingOfType("*string"), mock.AnythingOfType("*outbox.Outbox")).
		Return(true, nil).Once()

	result, err := processor.Process(ctx, payload, "sig")
	require.NoError(t, err)
	require.Equal(t, WebhookApplied, result)

	// Повторная доставка того же evt_1: подтверждается без обработки
	result, err = processor.Process(ctx, payload, "sig")
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, result)

	// Переход применялся ровно один раз
	repo.AssertNumberOfCalls(t, "ApplyTransition", 1)
}

// TestWebhookProcessor_Process_InvalidSignature проверяет отклонение невалидной подписи.
func TestWebhookProcessor_Process_InvalidSignature(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, mr := setupWebhookProcessor(t)

	payload := []byte(`{"id":"evt_1"}`)
	verifier.On("VerifyAndParse", payload, "bad-sig").
		Return(nil, domain.ErrInvalidSignature).Once()

	_, err := processor.Process(ctx, payload, "bad-sig")

	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	// Никаких побочных эффектов: ни переходов, ни записей дедупликации
	repo.AssertNotCalled(t, "ApplyTransition")
	assert.Empty(t, mr.Keys(), "отклонённое событие не должно попадать в дедупликацию")
}

// TestWebhookProcessor_Process_MalformedPayload проверяет отклонение нечитаемого payload.
func TestWebhookProcessor_Process_MalformedPayload(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, _ := setupWebhookProcessor(t)

	payload := []byte(`{broken`)
	verifier.On("VerifyAndParse", payload, "sig").
		Return(nil, domain.ErrMalformedPayload).Once()

	_, err := processor.Process(ctx, payload, "sig")

	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	repo.AssertNotCalled(t, "GetByIntentID")
}

// TestWebhookProcessor_Process_UnknownIntent проверяет событие для чужого намерения.
func TestWebhookProcessor_Process_UnknownIntent(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, _ := setupWebhookProcessor(t)

	payload := []byte(`{"id":"evt_alien"}`)
	evt := succeededEvent("evt_alien")
	evt.IntentID = "pi_alien"
	verifier.On("VerifyAndParse", payload, "sig").Return(evt, nil).Once()
	repo.On("GetByIntentID", ctx, "pi_alien").Return(nil, domain.ErrDonationNotFound).Once()

	result, err := processor.Process(ctx, payload, "sig")

	// Подтверждаем шлюзу: ретраи для чужого намерения бессмысленны
	require.NoError(t, err)
	assert.Equal(t, WebhookUnknownIntent, result)
}

// TestWebhookProcessor_Process_Informational проверяет информационные события.
func TestWebhookProcessor_Process_Informational(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, mr := setupWebhookProcessor(t)

	payload := []byte(`{"id":"evt_created"}`)
	verifier.On("VerifyAndParse", payload, "sig").Return(&domain.GatewayEvent{
		EventID:  "evt_created",
		Type:     domain.EventIntentCreated,
		IntentID: "pi_1",
	}, nil).Once()

	result, err := processor.Process(ctx, payload, "sig")

	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result)
	repo.AssertNotCalled(t, "ApplyTransition")
	// Информационное событие тоже дедуплицируется
	assert.True(t, mr.Exists("donation:webhook:event:evt_created"))
}

// TestWebhookProcessor_Process_TerminalIgnored проверяет событие для терминального пожертвования.
func TestWebhookProcessor_Process_TerminalIgnored(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, _ := setupWebhookProcessor(t)

	// FAILED пришёл раньше, теперь доставлен запоздавший canceled
	payload := []byte(`{"id":"evt_late"}`)
	verifier.On("VerifyAndParse", payload, "sig").Return(&domain.GatewayEvent{
		EventID:  "evt_late",
		Type:     domain.EventIntentCanceled,
		IntentID: "pi_1",
	}, nil).Once()

	d := terminalDonation(domain.StatusFailed)
	repo.On("GetByIntentID", ctx, "pi_1").Return(d, nil).Once()

	result, err := processor.Process(ctx, payload, "sig")

	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result, "событие для терминального пожертвования — no-op")
	repo.AssertNotCalled(t, "ApplyTransition")
}

// TestWebhookProcessor_Process_InternalError проверяет поведение при сбое БД.
func TestWebhookProcessor_Process_InternalError(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, mr := setupWebhookProcessor(t)

	payload := []byte(`{"id":"evt_db_err"}`)
	verifier.On("VerifyAndParse", payload, "sig").Return(succeededEvent("evt_db_err"), nil).Once()

	dbErr := errors.New("deadlock")
	repo.On("GetByIntentID", ctx, "pi_1").Return(nil, dbErr).Once()

	_, err := processor.Process(ctx, payload, "sig")

	assert.ErrorIs(t, err, dbErr)
	// Событие НЕ помечается обработанным: шлюз доставит его повторно
	assert.False(t, mr.Exists("donation:webhook:event:evt_db_err"),
		"событие со сбоем не должно попадать в дедупликацию")
}

// TestWebhookProcessor_Process_DedupDown проверяет обработку при недоступном Redis.
func TestWebhookProcessor_Process_DedupDown(t *testing.T) {
	ctx := context.Background()
	processor, verifier, repo, mr := setupWebhookProcessor(t)

	// Redis падает: дедупликация недоступна, но обработка продолжается
	mr.Close()

	payload := []byte(`{"id":"evt_1"}`)
	verifier.On("VerifyAndParse", payload, "sig").Return(succeededEvent("evt_1"), nil).Once()

	d := pendingDonation()
	repo.On("GetByIntentID", ctx, "pi_1").Return(d, nil)
	repo.On("ApplyTransition", ctx, mock.AnythingOfType("*domain.Donation"), domain.StatusSucceeded,
		mock.AnythingOfType("*string"), mock.AnythingOfType("*outbox.Outbox")).
		Return(true, nil).Once()

	result, err := processor.Process(ctx, payload, "sig")

	require.NoError(t, err, "недоступный Redis не должен блокировать обработку")
	assert.Equal(t, WebhookApplied, result)
}
