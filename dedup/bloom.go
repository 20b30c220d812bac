package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"briefbot/config"
)

// Bloom is an optional RedisBloom fast-path over historical fingerprints.
// The pipeline seeds one filter per issue build; the exact stage then asks
// the filter before probing the full map. A missing Redis deployment simply
// disables the fast-path.
type Bloom struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBloomFromEnv returns a Bloom wrapper when REDIS_ADDR is configured, or
// nil (disabled) when it is not.
func NewBloomFromEnv() (*Bloom, error) {
	addr := config.GetEnvOrDefault("REDIS_ADDR", "")
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.GetEnvOrDefault("REDIS_PASS", ""),
		DB:       config.GetEnvIntOrDefault("REDIS_DB", 0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &Bloom{client: client, ttl: config.BloomTTL}, nil
}

// Close closes the underlying Redis client.
func (b *Bloom) Close() error {
	return b.client.Close()
}

func (b *Bloom) key(issueID string) string {
	return "dedup:history:" + issueID
}

// Seed reserves a fresh filter for the issue and inserts the historical
// fingerprints. The key expires after the TTL so stale filters cannot
// outlive the run that built them.
func (b *Bloom) Seed(ctx context.Context, issueID string, fingerprints []string) error {
	key := b.key(issueID)

	if err := b.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	// BF.RESERVE may fail when the filter was auto-created or the module is
	// configured differently; BF.MADD auto-creates in that case.
	_ = b.client.Do(ctx, "BF.RESERVE", key,
		fmt.Sprintf("%f", config.BloomErrorRate), config.BloomCapacity).Err()

	if len(fingerprints) > 0 {
		args := make([]interface{}, 0, len(fingerprints)+2)
		args = append(args, "BF.MADD", key)
		for _, fp := range fingerprints {
			args = append(args, fp)
		}
		if err := b.client.Do(ctx, args...).Err(); err != nil {
			return err
		}
	}

	return b.client.Expire(ctx, key, b.ttl).Err()
}

// MightContain reports whether the fingerprint may be in the issue's
// historical set. Errors fail open: a broken filter must never hide a real
// historical match, so the caller falls back to the map probe.
func (b *Bloom) MightContain(ctx context.Context, issueID, fingerprint string) bool {
	res, err := b.client.Do(ctx, "BF.EXISTS", b.key(issueID), fingerprint).Result()
	if err != nil {
		return true
	}
	switch v := res.(type) {
	case int64:
		return v == 1
	case string:
		return v == "1"
	default:
		return true
	}
}
