package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/serplab/ranktune/internal/scoring"
)

// DefaultWeightsKey is the Redis key holding the active weight vector.
const DefaultWeightsKey = "ranktune:weights:current"

// RedisWeightStore keeps the weight vector as one JSON blob under a single
// key. A Redis SET replaces the whole value atomically, which satisfies the
// full-vector read/replace contract, and scoring reads stay cheap.
type RedisWeightStore struct {
	client *redis.Client
	key    string
}

// NewRedisWeightStore creates a weight store over the given Redis client.
// An empty key uses DefaultWeightsKey.
func NewRedisWeightStore(client *redis.Client, key string) *RedisWeightStore {
	if key == "" {
		key = DefaultWeightsKey
	}
	return &RedisWeightStore{client: client, key: key}
}

// Current returns the active weight vector, or ErrNoWeights when the key
// does not exist.
func (s *RedisWeightStore) Current(ctx context.Context) (scoring.FeatureWeights, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return scoring.FeatureWeights{}, ErrNoWeights
	}
	if err != nil {
		return scoring.FeatureWeights{}, fmt.Errorf("failed to load weights from redis: %w", err)
	}
	var weights scoring.FeatureWeights
	if err := json.Unmarshal(raw, &weights); err != nil {
		return scoring.FeatureWeights{}, fmt.Errorf("failed to decode weights: %w", err)
	}
	return weights, nil
}

// Save atomically replaces the active weight vector. The key never expires:
// the vector stays authoritative until the next training run replaces it.
func (s *RedisWeightStore) Save(ctx context.Context, weights scoring.FeatureWeights) error {
	raw, err := json.Marshal(weights)
	if err != nil {
		return fmt.Errorf("failed to encode weights: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save weights to redis: %w", err)
	}
	return nil
}
