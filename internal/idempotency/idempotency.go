// Package idempotency implements the dual-layer idempotency substrate: a
// fast Redis cache backed by a durable Postgres record, keyed by
// (idempotency_key, endpoint). The Redis layer is consulted first; a miss
// falls through to Postgres before the caller is told to proceed.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	fastTTL    = time.Hour
	durableTTL = 24 * time.Hour
	keyPrefix  = "idemp"
)

// Record is the outcome stored for a replayed request.
type Record struct {
	ResponseCode int             `json:"response_code"`
	ResponseBody json.RawMessage `json:"response_body"`
}

type redisPort interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
}

// Store is the idempotency substrate.
type Store struct {
	redis redisPort
	db    *pgxpool.Pool
}

func New(redis redisPort, db *pgxpool.Pool) *Store {
	return &Store{redis: redis, db: db}
}

func cacheKey(key, endpoint string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, key, endpoint)
}

// Check looks up a previously recorded response for (key, endpoint),
// consulting the fast Redis layer first and falling back to Postgres.
// A nil, nil return means no prior record exists and the caller may proceed.
func (s *Store) Check(ctx context.Context, key, endpoint string) (*Record, error) {
	if cached, err := s.redis.GetString(ctx, cacheKey(key, endpoint)); err == nil && cached != "" {
		var rec Record
		if err := json.Unmarshal([]byte(cached), &rec); err != nil {
			return nil, fmt.Errorf("idempotency: decode cached record: %w", err)
		}
		return &rec, nil
	}

	var rec Record
	row := s.db.QueryRow(ctx, `
		SELECT response_code, response_body
		FROM idempotency_keys
		WHERE key = $1 AND endpoint = $2 AND expires_at > now()
	`, key, endpoint)
	if err := row.Scan(&rec.ResponseCode, &rec.ResponseBody); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("idempotency: query durable record: %w", err)
	}
	return &rec, nil
}

// Record persists the outcome of a request under (key, endpoint) to both
// layers, so a retry with the same key short-circuits via Check.
func (s *Store) Record(ctx context.Context, key, endpoint string, responseCode int, responseBody interface{}) error {
	body, err := json.Marshal(responseBody)
	if err != nil {
		return fmt.Errorf("idempotency: marshal response body: %w", err)
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO idempotency_keys (key, endpoint, response_code, response_body, expires_at)
		VALUES ($1, $2, $3, $4, now() + make_interval(secs => $5))
		ON CONFLICT (key, endpoint) DO NOTHING
	`, key, endpoint, responseCode, body, durableTTL.Seconds()); err != nil {
		return fmt.Errorf("idempotency: persist durable record: %w", err)
	}

	rec := Record{ResponseCode: responseCode, ResponseBody: body}
	cached, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("idempotency: marshal cache entry: %w", err)
	}
	if err := s.redis.SetWithExpiration(ctx, cacheKey(key, endpoint), string(cached), fastTTL); err != nil {
		return fmt.Errorf("idempotency: write fast layer: %w", err)
	}
	return nil
}
