// Package dedup — дедупликация webhook-событий платёжного шлюза.
//
// Шлюз доставляет события по принципу at-least-once: одно событие может
// прийти несколько раз (ретраи, сетевые сбои). Store запоминает ID
// обработанных событий в Redis с ограниченным сроком хранения.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix — префикс ключей обработанных событий.
const keyPrefix = "donation:webhook:event:"

// Store хранит ID обработанных webhook-событий.
type Store struct {
	redis     *redis.Client
	retention time.Duration
}

// NewStore создаёт хранилище дедупликации.
// retention должен покрывать окно повторной доставки шлюза
// (Stripe ретраит события до 3 суток).
func NewStore(client *redis.Client, retention time.Duration) *Store {
	return &Store{
		redis:     client,
		retention: retention,
	}
}

// Seen проверяет, было ли событие уже обработано.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	exists, err := s.redis.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// Mark помечает событие обработанным.
// Ключ живёт retention и удаляется автоматически: хранилище не растёт бесконечно.
func (s *Store) Mark(ctx context.Context, eventID string) error {
	return s.redis.Set(ctx, keyPrefix+eventID, "1", s.retention).Err()
}

// Retention возвращает срок хранения записей.
func (s *Store) Retention() time.Duration {
	return s.retention
}
