package domain

import "errors"

// Доменные ошибки Donation Service.
// Handler-слой маппит их в HTTP статусы (см. handler/errors.go).
var (
	// Ошибки валидации запроса
	ErrDonorRequired       = errors.New("не указан донор")
	ErrInvalidAmount       = errors.New("сумма пожертвования должна быть положительной")
	ErrAmountTooLarge      = errors.New("сумма пожертвования превышает максимально допустимую")
	ErrUnsupportedCurrency = errors.New("валюта не поддерживается")
	ErrMessageTooLong      = errors.New("сообщение донора слишком длинное")

	// Ошибки платёжного шлюза
	ErrGatewayUnavailable = errors.New("платёжный шлюз временно недоступен")
	ErrIntentCreation     = errors.New("не удалось создать платёжное намерение")

	// Ошибки обработки webhook
	ErrInvalidSignature = errors.New("невалидная подпись webhook")
	ErrMalformedPayload = errors.New("не удалось разобрать payload webhook")

	// Ошибки данных
	ErrDonationNotFound = errors.New("пожертвование не найдено")
	ErrDuplicateIntent  = errors.New("пожертвование с таким intent_id уже существует")
	ErrAccessDenied     = errors.New("доступ к чужому пожертвованию запрещён")
)
