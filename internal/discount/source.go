package discount

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Checker-Finance/catalog-api/pkg/config"
)

// Setting names, shared by the environment and the Redis hash.
const (
	FieldPercent    = "percentDiscount"
	FieldCategories = "categoriesDiscount"
)

// Source yields the discount configuration. It is consulted on every listing,
// so changes take effect on the next call.
type Source interface {
	Load(ctx context.Context) (Config, error)
}

// Load lets a fixed Config act as a Source.
func (c Config) Load(context.Context) (Config, error) { return c, nil }

// EnvSource reads the discount from the process environment on each call.
// Both the camelCase names and their upper snake-case forms are accepted.
type EnvSource struct{}

func (EnvSource) Load(context.Context) (Config, error) {
	pct := config.FirstEnv("", FieldPercent, "PERCENT_DISCOUNT")
	cats := config.FirstEnv("", FieldCategories, "CATEGORIES_DISCOUNT")
	return NewConfig(parsePercent(pct), cats), nil
}

// RedisSource reads the discount from a Redis hash on each call. A missing hash
// means no discount.
type RedisSource struct {
	rdb redis.Cmdable
	key string
}

// NewRedisSource creates a Source reading hash key through rdb.
func NewRedisSource(rdb redis.Cmdable, key string) *RedisSource {
	return &RedisSource{rdb: rdb, key: key}
}

func (s *RedisSource) Load(ctx context.Context) (Config, error) {
	vals, err := s.rdb.HMGet(ctx, s.key, FieldPercent, FieldCategories).Result()
	if errors.Is(err, redis.Nil) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read discount hash %q: %w", s.key, err)
	}
	return NewConfig(parsePercent(str(vals[0])), str(vals[1])), nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// parsePercent treats an unparsable percent as 0 (no discount), the same
// way an absent setting is treated.
func parsePercent(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
