package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
)

// AttemptHistoryConfig defines how long attempts are retained.
type AttemptHistoryConfig struct {
	KeyPrefix string
	Window    time.Duration
}

// AttemptHistoryRepository keeps authentication attempts in Redis sorted sets scored by timestamp.
type AttemptHistoryRepository struct {
	client redis.Cmdable
	cfg    AttemptHistoryConfig
}

type attemptRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"ts"`
	IPAddress string    `json:"ip,omitempty"`
	UserAgent string    `json:"ua,omitempty"`
	Success   bool      `json:"success"`
	ErrorType string    `json:"error_type,omitempty"`
}

// NewAttemptHistoryRepository constructs a repository using the provided Redis client and config.
func NewAttemptHistoryRepository(client redis.Cmdable, cfg AttemptHistoryConfig) *AttemptHistoryRepository {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "lockout:attempts"
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &AttemptHistoryRepository{client: client, cfg: cfg}
}

// StoreAttempt appends attempt, trims entries older than the window and refreshes the key TTL.
func (r *AttemptHistoryRepository) StoreAttempt(ctx context.Context, key domain.LockoutKey, attempt domain.BruteForceAttempt) error {
	payload, err := json.Marshal(attemptRecord{
		ID:        uuid.NewString(),
		Timestamp: attempt.Timestamp.UTC(),
		IPAddress: attempt.IPAddress,
		UserAgent: attempt.UserAgent,
		Success:   attempt.Success,
		ErrorType: attempt.ErrorType,
	})
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	redisKey := r.key(key)
	threshold := strconv.FormatInt(attempt.Timestamp.Add(-r.cfg.Window).UnixNano(), 10)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(attempt.Timestamp.UnixNano()), Member: payload})
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+threshold)
		pipe.Expire(ctx, redisKey, r.cfg.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store attempt: %w", err)
	}
	return nil
}

// GetRecentAttempts returns attempts at or after since, oldest first.
func (r *AttemptHistoryRepository) GetRecentAttempts(ctx context.Context, key domain.LockoutKey, since time.Time) ([]domain.BruteForceAttempt, error) {
	members, err := r.client.ZRangeByScore(ctx, r.key(key), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixNano(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore: %w", err)
	}

	attempts := make([]domain.BruteForceAttempt, 0, len(members))
	for _, member := range members {
		var record attemptRecord
		if err := json.Unmarshal([]byte(member), &record); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		attempts = append(attempts, domain.BruteForceAttempt{
			Timestamp: record.Timestamp,
			IPAddress: record.IPAddress,
			UserAgent: record.UserAgent,
			Success:   record.Success,
			ErrorType: record.ErrorType,
		})
	}
	return attempts, nil
}

func (r *AttemptHistoryRepository) key(key domain.LockoutKey) string {
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, key.String())
}

var _ port.AttemptHistoryRepository = (*AttemptHistoryRepository)(nil)
