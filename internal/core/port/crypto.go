package port

import (
	"context"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	HashPassword(ctx context.Context, password string) (domain.PasswordHashResult, error)
	VerifyPassword(ctx context.Context, password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}
