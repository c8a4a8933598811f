package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/core/port"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/database"
	redisinfra "github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/redis"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/repository"
	"github.com/DaveSmith227/duolingo-clone-sub001/internal/repository/memory"
	postgresrepo "github.com/DaveSmith227/duolingo-clone-sub001/internal/repository/postgres"
	redisrepo "github.com/DaveSmith227/duolingo-clone-sub001/internal/repository/redis"
)

// storage holds the selected backends and the connections that need closing.
type storage struct {
	lockouts port.LockoutStore
	audit    port.AuditRepository
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
}

func openStorage(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*storage, error) {
	s := &storage{}

	if cfg.UsesPostgres() {
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		s.pool = pool
	}

	if cfg.UsesRedis() {
		client, err := redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		s.redis = client
	}

	var pg *postgresrepo.Repositories
	if s.pool != nil {
		pg = postgresrepo.NewRepositories(s.pool)
	}

	window := cfg.LockoutPolicy.HistoryWindow
	var inMemory *memory.LockoutStore
	memoryStore := func() *memory.LockoutStore {
		if inMemory == nil {
			inMemory = memory.NewLockoutStore(window)
		}
		return inMemory
	}

	var state port.LockoutStateRepository
	switch cfg.Storage.LockoutState {
	case config.BackendPostgres:
		state = pg.Lockouts
	case config.BackendRedis:
		state = redisrepo.NewLockoutStateRepository(s.redis.Client(), cfg.Redis.StatePrefix)
	default:
		state = memoryStore()
	}

	var history port.AttemptHistoryRepository
	switch cfg.Storage.AttemptHistory {
	case config.BackendRedis:
		history = redisrepo.NewAttemptHistoryRepository(s.redis.Client(), redisrepo.AttemptHistoryConfig{
			KeyPrefix: cfg.Redis.AttemptPrefix,
			Window:    window,
		})
	default:
		history = memoryStore()
	}

	if cfg.Storage.Audit == config.BackendPostgres {
		s.audit = pg.Audit
	} else {
		s.audit = memory.NewAuditRepository()
	}

	s.lockouts = repository.NewLockoutStore(state, history)

	log.Info("storage backends selected",
		zap.String("lockout_state", cfg.Storage.LockoutState),
		zap.String("attempt_history", cfg.Storage.AttemptHistory),
		zap.String("audit", cfg.Storage.Audit),
	)

	return s, nil
}

func (s *storage) close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
