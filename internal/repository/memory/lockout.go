package memory

import (
	"context"
	"sync"
	"time"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/repository"
)

// LockoutStore keeps lockout state and attempt history in process memory.
// It is intended for tests and single-instance development setups.
type LockoutStore struct {
	mu       sync.RWMutex
	state    map[string]domain.LockoutInfo
	attempts map[string][]domain.BruteForceAttempt
	retain   time.Duration
}

// NewLockoutStore constructs an empty store. Attempts older than retain are
// pruned on write; a non-positive retain keeps everything.
func NewLockoutStore(retain time.Duration) *LockoutStore {
	return &LockoutStore{
		state:    make(map[string]domain.LockoutInfo),
		attempts: make(map[string][]domain.BruteForceAttempt),
		retain:   retain,
	}
}

// GetLockoutInfo implements port.LockoutStateRepository.
func (s *LockoutStore) GetLockoutInfo(_ context.Context, key domain.LockoutKey) (*domain.LockoutInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.state[key.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &info, nil
}

// StoreLockoutInfo implements port.LockoutStateRepository.
func (s *LockoutStore) StoreLockoutInfo(_ context.Context, info domain.LockoutInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state[info.Key().String()] = info
	return nil
}

// GetRecentAttempts implements port.AttemptHistoryRepository.
func (s *LockoutStore) GetRecentAttempts(_ context.Context, key domain.LockoutKey, since time.Time) ([]domain.BruteForceAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.attempts[key.String()]
	out := make([]domain.BruteForceAttempt, 0, len(stored))
	for _, attempt := range stored {
		if !attempt.Timestamp.Before(since) {
			out = append(out, attempt)
		}
	}
	return out, nil
}

// StoreAttempt implements port.AttemptHistoryRepository.
func (s *LockoutStore) StoreAttempt(_ context.Context, key domain.LockoutKey, attempt domain.BruteForceAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	list := append(s.attempts[id], attempt)
	if s.retain > 0 {
		cutoff := attempt.Timestamp.Add(-s.retain)
		start := 0
		for start < len(list) && list[start].Timestamp.Before(cutoff) {
			start++
		}
		list = list[start:]
	}
	s.attempts[id] = list
	return nil
}

var _ port.LockoutStore = (*LockoutStore)(nil)
