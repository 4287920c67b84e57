package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:bloodbank:"

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) key(k string) string {
	return keyPrefix + k
}

func (r *Redis) Reserve(ctx context.Context, key, requestHash string) (*Record, error) {
	k := r.key(key)
	raw, err := json.Marshal(Record{Status: statusProcessing, RequestHash: requestHash})
	if err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, err := r.client.SetArgs(ctx, k, raw, redis.SetArgs{Mode: "NX", TTL: TTL}).Result()
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis set: %w", err)
		}

		data, err := r.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			// Expired or released between the two calls.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("redis unmarshal: %w", err)
		}
		return resolve(rec, requestHash)
	}
}

func (r *Redis) Complete(ctx context.Context, key string, status int, body []byte) error {
	k := r.key(key)
	data, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("redis unmarshal: %w", err)
	}

	rec.Status = statusCompleted
	rec.ResponseStatus = status
	rec.ResponseBody = body
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, k, raw, TTL).Err()
}

func (r *Redis) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
