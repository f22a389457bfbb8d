package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func supportedForTest(currency string) bool {
	return currency == "usd" || currency == "eur"
}

// TestDonationStatus_CanTransitionTo проверяет граф переходов статусов.
func TestDonationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    DonationStatus
		to      DonationStatus
		allowed bool
	}{
		{"PENDING -> SUCCEEDED разрешён", StatusPending, StatusSucceeded, true},
		{"PENDING -> FAILED разрешён", StatusPending, StatusFailed, true},
		{"PENDING -> CANCELED разрешён", StatusPending, StatusCanceled, true},
		{"PENDING -> PENDING запрещён", StatusPending, StatusPending, false},
		{"SUCCEEDED -> FAILED запрещён (терминал)", StatusSucceeded, StatusFailed, false},
		{"SUCCEEDED -> CANCELED запрещён (терминал)", StatusSucceeded, StatusCanceled, false},
		{"FAILED -> SUCCEEDED запрещён (терминал)", StatusFailed, StatusSucceeded, false},
		{"CANCELED -> SUCCEEDED запрещён (терминал)", StatusCanceled, StatusSucceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// TestDonationStatus_IsTerminal проверяет определение конечных статусов.
func TestDonationStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusSucceeded.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
}

// TestDonation_Validate проверяет бизнес-правила пожертвования.
func TestDonation_Validate(t *testing.T) {
	const maxAmount = 5_000_000 // 50 000.00 в минимальных единицах

	base := func() *Donation {
		return &Donation{
			DonorID:  "donor-123",
			Amount:   2500,
			Currency: "usd",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Donation)
		wantErr error
	}{
		{"валидное пожертвование", func(d *Donation) {}, nil},
		{"нулевая сумма", func(d *Donation) { d.Amount = 0 }, ErrInvalidAmount},
		{"отрицательная сумма", func(d *Donation) { d.Amount = -100 }, ErrInvalidAmount},
		{"сумма больше лимита", func(d *Donation) { d.Amount = maxAmount + 1 }, ErrAmountTooLarge},
		{"сумма ровно на лимите", func(d *Donation) { d.Amount = maxAmount }, nil},
		{"неподдерживаемая валюта", func(d *Donation) { d.Currency = "jpy" }, ErrUnsupportedCurrency},
		{"пустой донор", func(d *Donation) { d.DonorID = "" }, ErrDonorRequired},
		{"слишком длинное сообщение", func(d *Donation) {
			msg := make([]byte, maxMessageLength+1)
			for i := range msg {
				msg[i] = 'x'
			}
			d.Message = string(msg)
		}, ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(d)

			err := d.Validate(maxAmount, supportedForTest)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestGatewayEvent_TargetStatus проверяет маппинг событий шлюза в статусы.
func TestGatewayEvent_TargetStatus(t *testing.T) {
	tests := []struct {
		name       string
		eventType  EventType
		wantStatus DonationStatus
		wantOK     bool
	}{
		{"succeeded -> SUCCEEDED", EventIntentSucceeded, StatusSucceeded, true},
		{"failed -> FAILED", EventIntentFailed, StatusFailed, true},
		{"canceled -> CANCELED", EventIntentCanceled, StatusCanceled, true},
		{"created — информационное, перехода нет", EventIntentCreated, "", false},
		{"unknown — перехода нет", EventUnknown, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := &GatewayEvent{EventID: "evt_1", Type: tt.eventType, IntentID: "pi_1"}

			status, ok := evt.TargetStatus()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantStatus, status)
			}
		})
	}
}
