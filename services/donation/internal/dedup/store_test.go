// Package dedup — тесты хранилища дедупликации webhook-событий.
// Используется miniredis для быстрых тестов без Docker.
package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, retention time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "не удалось запустить miniredis")
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewStore(client, retention), mr
}

// TestStore_SeenAndMark проверяет базовый цикл дедупликации.
func TestStore_SeenAndMark(t *testing.T) {
	store, _ := setupStore(t, 72*time.Hour)
	ctx := context.Background()

	t.Run("новое событие не помечено", func(t *testing.T) {
		seen, err := store.Seen(ctx, "evt_new_1")
		require.NoError(t, err)
		assert.False(t, seen, "новое событие не должно быть помечено")
	})

	t.Run("после Mark событие считается обработанным", func(t *testing.T) {
		err := store.Mark(ctx, "evt_processed_1")
		require.NoError(t, err)

		seen, err := store.Seen(ctx, "evt_processed_1")
		require.NoError(t, err)
		assert.True(t, seen, "помеченное событие должно считаться обработанным")
	})

	t.Run("повторный Mark не даёт ошибку", func(t *testing.T) {
		require.NoError(t, store.Mark(ctx, "evt_twice"))
		require.NoError(t, store.Mark(ctx, "evt_twice"))

		seen, err := store.Seen(ctx, "evt_twice")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("разные события независимы", func(t *testing.T) {
		require.NoError(t, store.Mark(ctx, "evt_a"))

		seen, err := store.Seen(ctx, "evt_b")
		require.NoError(t, err)
		assert.False(t, seen, "пометка evt_a не должна влиять на evt_b")
	})
}

// TestStore_Retention проверяет ограниченный срок хранения записей.
func TestStore_Retention(t *testing.T) {
	store, mr := setupStore(t, 2*time.Second)
	ctx := context.Background()

	require.NoError(t, store.Mark(ctx, "evt_ttl"))

	seen, err := store.Seen(ctx, "evt_ttl")
	require.NoError(t, err)
	assert.True(t, seen, "запись должна жить в пределах retention")

	// Эмулируем прохождение времени в miniredis
	mr.FastForward(3 * time.Second)

	seen, err = store.Seen(ctx, "evt_ttl")
	require.NoError(t, err)
	assert.False(t, seen, "запись должна исчезнуть после retention")
}

// TestStore_RedisDown проверяет поведение при недоступном Redis.
func TestStore_RedisDown(t *testing.T) {
	store, mr := setupStore(t, 72*time.Hour)
	ctx := context.Background()

	mr.Close()

	_, err := store.Seen(ctx, "evt_1")
	assert.Error(t, err, "Seen должен возвращать ошибку при недоступном Redis")

	err = store.Mark(ctx, "evt_1")
	assert.Error(t, err, "Mark должен возвращать ошибку при недоступном Redis")
}
