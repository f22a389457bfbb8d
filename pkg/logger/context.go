package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// Ключи для хранения значений в контексте.
// Приватный тип исключает коллизии с другими пакетами.
type ctxKey string

const (
	// traceIDKey — ключ для хранения trace_id в контексте.
	// Trace ID генерируется на входе в систему и сопровождает запрос везде.
	traceIDKey ctxKey = "trace_id"

	// donationIDKey — ключ для хранения donation_id в контексте.
	// Связывает все записи логов, относящиеся к одному пожертвованию.
	donationIDKey ctxKey = "donation_id"

	// loggerKey — ключ для хранения настроенного логгера в контексте.
	loggerKey ctxKey = "logger"
)

// WithTraceID добавляет trace_id в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext извлекает trace_id из контекста.
// Возвращает пустую строку, если trace_id не установлен.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithDonationID добавляет donation_id в контекст.
func WithDonationID(ctx context.Context, donationID string) context.Context {
	return context.WithValue(ctx, donationIDKey, donationID)
}

// DonationIDFromContext извлекает donation_id из контекста.
func DonationIDFromContext(ctx context.Context) string {
	if donationID, ok := ctx.Value(donationIDKey).(string); ok {
		return donationID
	}
	return ""
}

// WithLogger добавляет логгер в контекст.
// Используется для передачи настроенного логгера через слои приложения.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext извлекает логгер из контекста и автоматически добавляет
// trace_id и donation_id, если они присутствуют.
//
// Если логгер не был явно добавлен, возвращает глобальный логгер.
// Основной способ получения логгера в обработчиках и сервисах.
func FromContext(ctx context.Context) zerolog.Logger {
	var l zerolog.Logger
	if ctxLogger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		l = ctxLogger
	} else {
		l = log
	}

	if traceID := TraceIDFromContext(ctx); traceID != "" {
		l = l.With().Str("trace_id", traceID).Logger()
	}

	if donationID := DonationIDFromContext(ctx); donationID != "" {
		l = l.With().Str("donation_id", donationID).Logger()
	}

	return l
}

// Ctx возвращает указатель на zerolog.Logger из контекста.
// Альтернатива FromContext, совместимая по стилю с zerolog.Ctx().
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l
}
