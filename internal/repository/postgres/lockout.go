package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/domain"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/repository"
)

const lockoutTable = "security.account_lockouts"

// LockoutRepository implements port.LockoutStateRepository backed by PostgreSQL.
// This is the authoritative source for attempt counters.
type LockoutRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLockoutRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewLockoutRepository(exec pgExecutor) *LockoutRepository {
	return &LockoutRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *LockoutRepository) WithTx(tx pgx.Tx) *LockoutRepository {
	if tx == nil {
		return r
	}
	return &LockoutRepository{exec: tx, builder: r.builder}
}

// GetLockoutInfo fetches the lockout state stored for key.
func (r *LockoutRepository) GetLockoutInfo(ctx context.Context, key domain.LockoutKey) (*domain.LockoutInfo, error) {
	stmt, args, err := r.builder.
		Select(
			"user_id",
			"email",
			"is_locked",
			"reason",
			"locked_at",
			"unlock_at",
			"attempt_count",
			"lockout_count",
			"threat_level",
			"is_permanent",
			"updated_at",
		).
		From(lockoutTable).
		Where(squirrel.Eq{"lockout_key": key.String()}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select lockout sql: %w", err)
	}

	info, err := scanLockout(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scan lockout: %w", err)
	}
	return info, nil
}

// StoreLockoutInfo upserts the lockout state for the identity carried by info.
func (r *LockoutRepository) StoreLockoutInfo(ctx context.Context, info domain.LockoutInfo) error {
	key := info.Key().String()
	if key == "" {
		return fmt.Errorf("lockout info has no identity")
	}

	stmt, args, err := r.builder.Insert(lockoutTable).
		Columns(
			"lockout_key",
			"user_id",
			"email",
			"is_locked",
			"reason",
			"locked_at",
			"unlock_at",
			"attempt_count",
			"lockout_count",
			"threat_level",
			"is_permanent",
			"updated_at",
		).
		Values(
			key,
			optionalText(info.UserID),
			optionalText(info.Email),
			info.IsLocked,
			optionalText(string(info.Reason)),
			optionalTime(info.LockedAt),
			optionalTime(info.UnlockAt),
			info.AttemptCount,
			info.LockoutCount,
			string(threatLevelOrLow(info.ThreatLevel)),
			info.IsPermanent,
			info.UpdatedAt.UTC(),
		).
		Suffix(`ON CONFLICT (lockout_key) DO UPDATE SET
            user_id = EXCLUDED.user_id,
            email = EXCLUDED.email,
            is_locked = EXCLUDED.is_locked,
            reason = EXCLUDED.reason,
            locked_at = EXCLUDED.locked_at,
            unlock_at = EXCLUDED.unlock_at,
            attempt_count = EXCLUDED.attempt_count,
            lockout_count = EXCLUDED.lockout_count,
            threat_level = EXCLUDED.threat_level,
            is_permanent = EXCLUDED.is_permanent,
            updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert lockout sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert lockout: %w", err)
	}
	return nil
}

func scanLockout(row pgx.Row) (*domain.LockoutInfo, error) {
	var (
		info        domain.LockoutInfo
		userID      sql.NullString
		email       sql.NullString
		reason      sql.NullString
		lockedAt    sql.NullTime
		unlockAt    sql.NullTime
		threatLevel sql.NullString
	)

	if err := row.Scan(
		&userID,
		&email,
		&info.IsLocked,
		&reason,
		&lockedAt,
		&unlockAt,
		&info.AttemptCount,
		&info.LockoutCount,
		&threatLevel,
		&info.IsPermanent,
		&info.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	parsedReason, err := domain.ParseLockoutReason(reason.String)
	if err != nil {
		return nil, err
	}
	level, err := domain.ParseThreatLevel(threatLevel.String)
	if err != nil {
		return nil, err
	}

	info.UserID = userID.String
	info.Email = email.String
	info.Reason = parsedReason
	info.ThreatLevel = level
	info.LockedAt = nullableTimePtr(lockedAt)
	info.UnlockAt = nullableTimePtr(unlockAt)
	info.UpdatedAt = info.UpdatedAt.UTC()
	return &info, nil
}

func threatLevelOrLow(level domain.ThreatLevel) domain.ThreatLevel {
	if level == "" {
		return domain.ThreatLevelLow
	}
	return level
}

var _ port.LockoutStateRepository = (*LockoutRepository)(nil)
