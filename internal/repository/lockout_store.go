package repository

import (
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
)

// CompositeLockoutStore pairs an authoritative state repository with a
// separate attempt history backend.
type CompositeLockoutStore struct {
	port.LockoutStateRepository
	port.AttemptHistoryRepository
}

// NewLockoutStore combines state and history into a port.LockoutStore.
func NewLockoutStore(state port.LockoutStateRepository, history port.AttemptHistoryRepository) *CompositeLockoutStore {
	return &CompositeLockoutStore{
		LockoutStateRepository:   state,
		AttemptHistoryRepository: history,
	}
}

var _ port.LockoutStore = (*CompositeLockoutStore)(nil)
