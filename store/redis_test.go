package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/qianlnk/mafia/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, time.Hour)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStore(t *testing.T) {
	storeSuite(t, newTestRedisStore(t))
}

func TestRedisStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)
	require.NoError(t, s.Create(ctx, newRecord("g1", "QRST")))

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "g1", func(rec *models.GameRecord) error {
				rec.Day++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, writers, got.Day)
	assert.Equal(t, int64(writers+1), got.Version)
}
