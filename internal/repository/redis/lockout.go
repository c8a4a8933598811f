package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/repository"
)

// LockoutStateRepository stores lockout state as JSON documents for
// deployments that keep counters in Redis instead of PostgreSQL.
type LockoutStateRepository struct {
	client redis.Cmdable
	prefix string
}

type lockoutRecord struct {
	UserID       string     `json:"user_id,omitempty"`
	Email        string     `json:"email,omitempty"`
	IsLocked     bool       `json:"is_locked"`
	Reason       string     `json:"reason,omitempty"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	UnlockAt     *time.Time `json:"unlock_at,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	LockoutCount int        `json:"lockout_count"`
	ThreatLevel  string     `json:"threat_level"`
	IsPermanent  bool       `json:"is_permanent"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewLockoutStateRepository constructs a repository writing keys under prefix.
func NewLockoutStateRepository(client redis.Cmdable, prefix string) *LockoutStateRepository {
	if prefix == "" {
		prefix = "lockout:state"
	}
	return &LockoutStateRepository{client: client, prefix: prefix}
}

// GetLockoutInfo implements port.LockoutStateRepository.
func (r *LockoutStateRepository) GetLockoutInfo(ctx context.Context, key domain.LockoutKey) (*domain.LockoutInfo, error) {
	payload, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get lockout: %w", err)
	}

	var record lockoutRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode lockout: %w", err)
	}

	reason, err := domain.ParseLockoutReason(record.Reason)
	if err != nil {
		return nil, err
	}
	level, err := domain.ParseThreatLevel(record.ThreatLevel)
	if err != nil {
		return nil, err
	}

	return &domain.LockoutInfo{
		UserID:       record.UserID,
		Email:        record.Email,
		IsLocked:     record.IsLocked,
		Reason:       reason,
		LockedAt:     record.LockedAt,
		UnlockAt:     record.UnlockAt,
		AttemptCount: record.AttemptCount,
		LockoutCount: record.LockoutCount,
		ThreatLevel:  level,
		IsPermanent:  record.IsPermanent,
		UpdatedAt:    record.UpdatedAt,
	}, nil
}

// StoreLockoutInfo implements port.LockoutStateRepository. Keys never expire;
// a permanent lock must survive until an admin clears it.
func (r *LockoutStateRepository) StoreLockoutInfo(ctx context.Context, info domain.LockoutInfo) error {
	if info.Key().IsZero() {
		return fmt.Errorf("lockout info has no identity")
	}

	payload, err := json.Marshal(lockoutRecord{
		UserID:       info.UserID,
		Email:        info.Email,
		IsLocked:     info.IsLocked,
		Reason:       string(info.Reason),
		LockedAt:     info.LockedAt,
		UnlockAt:     info.UnlockAt,
		AttemptCount: info.AttemptCount,
		LockoutCount: info.LockoutCount,
		ThreatLevel:  string(info.ThreatLevel),
		IsPermanent:  info.IsPermanent,
		UpdatedAt:    info.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal lockout: %w", err)
	}

	if err := r.client.Set(ctx, r.key(info.Key()), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set lockout: %w", err)
	}
	return nil
}

func (r *LockoutStateRepository) key(key domain.LockoutKey) string {
	return fmt.Sprintf("%s:%s", r.prefix, key.String())
}

var _ port.LockoutStateRepository = (*LockoutStateRepository)(nil)
