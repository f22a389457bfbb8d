// Package kafka предоставляет обёртки над kafka-go для публикации
// уведомлений о смене статусов пожертвований.
// Сообщения отправляются через Outbox Worker (см. pkg/outbox) с гарантией at-least-once.
package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/pet-adoption/pkg/logger"
)

// Топики Donation Service.
const (
	// TopicDonationStatus — уведомления о смене статуса пожертвования.
	// Потребители: сервис нотификаций (email донору), админ-панель приюта.
	TopicDonationStatus = "donation.status"
)

// Ключи для headers сообщений Kafka.
const (
	// HeaderTraceID — идентификатор трассировки для distributed tracing.
	HeaderTraceID = "trace_id"

	// HeaderDonationID — идентификатор пожертвования.
	HeaderDonationID = "donation_id"

	// HeaderTimestamp — временная метка создания сообщения.
	HeaderTimestamp = "timestamp"
)

// Config содержит настройки для подключения к Kafka.
type Config struct {
	// Brokers — список адресов брокеров Kafka.
	Brokers []string
}

// Message представляет сообщение Kafka с метаданными.
type Message struct {
	// Key — ключ сообщения для партиционирования (donation_id).
	Key []byte

	// Value — тело сообщения (JSON payload).
	Value []byte

	// Topic — топик сообщения.
	Topic string

	// Headers — заголовки сообщения (trace_id, donation_id и т.д.).
	Headers map[string]string

	// Time — временная метка сообщения.
	Time time.Time
}

// toKafkaMessage конвертирует Message в kafka.Message.
func (m *Message) toKafkaMessage() kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{
			Key:   k,
			Value: []byte(v),
		})
	}

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Value,
		Topic:   m.Topic,
		Headers: headers,
		Time:    m.Time,
	}
}

// DefaultTopics возвращает топики сервиса с настройками по умолчанию.
func DefaultTopics() []kafka.TopicConfig {
	return []kafka.TopicConfig{
		{
			Topic:             TopicDonationStatus,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}
}

// EnsureTopics создаёт топики, если они не существуют.
// Вызывается при старте сервиса; ошибка не фатальна — Kafka может
// создавать топики автоматически.
func EnsureTopics(brokers []string, topics []kafka.TopicConfig) error {
	if len(brokers) == 0 {
		return fmt.Errorf("не указаны брокеры Kafka")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("ошибка подключения к Kafka: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Создание топиков доступно только через controller брокер.
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("ошибка получения controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("ошибка подключения к controller: %w", err)
	}
	defer func() { _ = controllerConn.Close() }()

	if err := controllerConn.CreateTopics(topics...); err != nil {
		return fmt.Errorf("ошибка создания топиков: %w", err)
	}

	logger.Info().Int("count", len(topics)).Msg("Топики Kafka проверены")
	return nil
}

// TraceIDFromContext извлекает trace_id из context.
// Делегирует в pkg/logger для единообразной работы с контекстом.
func TraceIDFromContext(ctx context.Context) string {
	return logger.TraceIDFromContext(ctx)
}

// DonationIDFromContext извлекает donation_id из context.
func DonationIDFromContext(ctx context.Context) string {
	return logger.DonationIDFromContext(ctx)
}
