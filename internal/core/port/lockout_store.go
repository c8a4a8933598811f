package port

import (
	"context"
	"time"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

// LockoutStateRepository persists the authoritative per-identity lockout state.
// GetLockoutInfo returns repository.ErrNotFound when the identity has no state yet.
type LockoutStateRepository interface {
	GetLockoutInfo(ctx context.Context, key domain.LockoutKey) (*domain.LockoutInfo, error)
	StoreLockoutInfo(ctx context.Context, info domain.LockoutInfo) error
}

// AttemptHistoryRepository keeps a bounded, time-windowed log of authentication attempts.
// GetRecentAttempts returns attempts at or after since, oldest first.
type AttemptHistoryRepository interface {
	GetRecentAttempts(ctx context.Context, key domain.LockoutKey, since time.Time) ([]domain.BruteForceAttempt, error)
	StoreAttempt(ctx context.Context, key domain.LockoutKey, attempt domain.BruteForceAttempt) error
}

// LockoutStore is the full storage contract of the lockout service.
type LockoutStore interface {
	LockoutStateRepository
	AttemptHistoryRepository
}
