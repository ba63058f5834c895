package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps the two collections under {prefix}:rules and
// {prefix}:executions. Both keys are written in one MULTI/EXEC.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to redisURL and verifies the connection.
func NewRedisBackend(redisURL, prefix string) (*RedisBackend, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisBackendWithClient(client, prefix), nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "automation"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) rulesKey() string      { return b.prefix + ":rules" }
func (b *RedisBackend) executionsKey() string { return b.prefix + ":executions" }

func (b *RedisBackend) Load(ctx context.Context) (Snapshot, error) {
	vals, err := b.client.MGet(ctx, b.rulesKey(), b.executionsKey()).Result()
	if err != nil {
		return Snapshot{}, err
	}
	if vals[0] == nil && vals[1] == nil {
		return Snapshot{}, ErrNoSnapshot
	}

	var s Snapshot
	if raw, ok := vals[0].(string); ok {
		if err := json.Unmarshal([]byte(raw), &s.Rules); err != nil {
			return Snapshot{}, fmt.Errorf("decoding %s: %w", b.rulesKey(), err)
		}
	}
	if raw, ok := vals[1].(string); ok {
		if err := json.Unmarshal([]byte(raw), &s.Executions); err != nil {
			return Snapshot{}, fmt.Errorf("decoding %s: %w", b.executionsKey(), err)
		}
	}
	return s, nil
}

func (b *RedisBackend) Save(ctx context.Context, s Snapshot) error {
	s = normalize(s)
	rules, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	executions, err := json.Marshal(s.Executions)
	if err != nil {
		return fmt.Errorf("encoding executions: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.rulesKey(), rules, 0)
	pipe.Set(ctx, b.executionsKey(), executions, 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (b *RedisBackend) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
