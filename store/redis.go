package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qianlnk/mafia/logger"
	"github.com/qianlnk/mafia/models"
	"github.com/redis/go-redis/v9"
)

var _ SessionStore = (*RedisStore)(nil)

const (
	redisKeyPrefix    = "mafia:"
	redisMaxTxRetries = 16
)

func gameKey(id string) string { return redisKeyPrefix + "game:" + id }
func codeKey(code string) string { return redisKeyPrefix + "code:" + code }
func updatesChannel(id string) string { return redisKeyPrefix + "game:" + id + ":updates" }

// RedisStore keeps session records as JSON strings in Redis.
// Key format: "mafia:game:{id}", "mafia:code:{code}", channel "mafia:game:{id}:updates"
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the given redis:// URL and pings it.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("解析 Redis 地址失败: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	logger.Info("Redis 连接成功: %s", opt.Addr)
	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, rec *models.GameRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("记录为空或缺少ID")
	}

	ok, err := s.client.SetNX(ctx, codeKey(rec.Code), rec.ID, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("占用房间码失败: %w", err)
	}
	if !ok {
		return ErrCodeTaken
	}

	stored := rec.Clone()
	stored.Version = 1
	data, err := json.Marshal(stored)
	if err != nil {
		s.client.Del(ctx, codeKey(rec.Code))
		return fmt.Errorf("序列化会话失败: %w", err)
	}
	created, err := s.client.SetNX(ctx, gameKey(rec.ID), data, s.ttl).Result()
	if err != nil || !created {
		s.client.Del(ctx, codeKey(rec.Code))
		if err == nil {
			err = fmt.Errorf("记录 %s 已存在", rec.ID)
		}
		return fmt.Errorf("保存会话失败: %w", err)
	}
	rec.Version = stored.Version
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.GameRecord, error) {
	return s.get(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c getter, id string) (*models.GameRecord, error) {
	data, err := c.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}

	var rec models.GameRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("解析会话失败: %w", err)
	}
	if rec.Players == nil {
		rec.Players = make(map[string]*models.Player)
	}
	return &rec, nil
}

func (s *RedisStore) LookupCode(ctx context.Context, code string) (string, error) {
	id, err := s.client.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("查询房间码失败: %w", err)
	}
	return id, nil
}

// Update runs fn inside WATCH/MULTI and retries when another writer got there first.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.GameRecord, error) {
	key := gameKey(id)
	var result *models.GameRecord

	txf := func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			if errors.Is(err, ErrNoChange) {
				result = current
				return nil
			}
			return err
		}
		next.Version = current.Version + 1
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("序列化会话失败: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.Publish(ctx, updatesChannel(id), next.Version)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < redisMaxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			logger.Debug("会话 %s 写冲突，重试 (%d/%d)", id, i+1, redisMaxTxRetries)
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("更新会话 %s 超过 %d 次重试", id, redisMaxTxRetries)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, gameKey(id))
	pipe.Del(ctx, codeKey(rec.Code))
	pipe.Publish(ctx, updatesChannel(id), "deleted")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	return nil
}

// Subscribe listens on the record's pub/sub channel and re-reads the record on every
// notification. The channel closes when ctx ends or the record is deleted.
func (s *RedisStore) Subscribe(ctx context.Context, id string) (<-chan *models.GameRecord, error) {
	pubsub := s.client.Subscribe(ctx, updatesChannel(id))
	// wait for the subscription to be confirmed so no update is missed after the first read
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("订阅会话更新失败: %w", err)
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan *models.GameRecord, SubscriptionBuffer)
	out <- rec

	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		lastVersion := rec.Version
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				latest, err := s.Get(ctx, id)
				if errors.Is(err, ErrNotFound) {
					return
				}
				if err != nil {
					logger.Warn("读取会话 %s 失败: %v", id, err)
					continue
				}
				if latest.Version <= lastVersion {
					continue
				}
				lastVersion = latest.Version
				deliver(out, latest)
			}
		}
	}()

	return out, nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("关闭 Redis 连接失败: %w", err)
	}
	return nil
}
