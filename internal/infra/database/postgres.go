package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
)

const (
	securitySchema  = "security"
	applicationName = "securityd"
	pingTimeout     = 5 * time.Second

	// Lockout reads sit on the login path; a stuck query must surface as an
	// error so the service can fail secure instead of hanging the request.
	statementTimeout = 3 * time.Second
)

// NewPostgresPool opens a pool for the lockout and audit tables and verifies connectivity.
func NewPostgresPool(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	if log == nil {
		log = zap.NewNop()
	}

	poolConfig, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", poolConfig.ConnConfig.Host, err)
	}

	log.Info("lockout and audit store connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("schema", securitySchema),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return pool, nil
}

func poolConfig(cfg config.PostgresSettings) (*pgxpool.Config, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}

	pc, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= pc.MaxConns {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	params := pc.ConnConfig.RuntimeParams
	if params == nil {
		params = make(map[string]string)
		pc.ConnConfig.RuntimeParams = params
	}
	params["search_path"] = securitySchema + ",public"
	params["application_name"] = applicationName
	params["statement_timeout"] = strconv.FormatInt(statementTimeout.Milliseconds(), 10)

	return pc, nil
}
