// Package rediskv keeps session slots in Redis, one key per (client context, slot).
package rediskv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/session"
)

type Slots struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ session.Slots = (*Slots)(nil)

// NewClient connects to the configured Redis server.
func NewClient(ctx context.Context, conf core.SessionsConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func New(client *redis.Client, prefix string, ttl time.Duration) *Slots {
	return &Slots{client: client, prefix: prefix, ttl: ttl}
}

func (s *Slots) key(contextID, key string) string {
	return s.prefix + contextID + ":" + key
}

func (s *Slots) Get(ctx context.Context, contextID, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(contextID, key)).Result()
	if err == redis.Nil {
		return "", session.ErrSlotEmpty
	}
	if err != nil {
		return "", errors.Wrap(err, "reading slot")
	}
	return val, nil
}

func (s *Slots) Set(ctx context.Context, contextID, key, value string) error {
	if err := s.client.Set(ctx, s.key(contextID, key), value, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "writing slot")
	}
	return nil
}

func (s *Slots) Delete(ctx context.Context, contextID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, s.key(contextID, key))
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, "deleting slots")
	}
	return nil
}
