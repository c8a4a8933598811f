package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
)

const (
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	connectTimeout      = 5 * time.Second
)

// Client owns the connection pool shared by the lockout state and attempt history repositories.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewClient opens the pool and pings it once so a misconfigured cache fails startup.
func NewClient(ctx context.Context, cfg config.RedisSettings, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rdb := redis.NewClient(clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", rdb.Options().Addr, err)
	}

	logger.Info("redis attempt store connected",
		zap.String("addr", rdb.Options().Addr),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", rdb.Options().PoolSize),
		zap.Bool("tls", cfg.TLSEnabled),
	)

	return &Client{rdb: rdb, logger: logger}, nil
}

// clientOptions translates settings into pool options. Lockout checks sit on
// the login path, so timeouts stay short and retries few.
func clientOptions(cfg config.RedisSettings) *redis.Options {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	minIdle := cfg.MinIdleConns
	if minIdle < 0 || minIdle > poolSize {
		minIdle = defaultMinIdleConns
	}

	opts := &redis.Options{
		Addr:            net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        poolSize,
		MinIdleConns:    minIdle,
		MaxRetries:      2,
		DialTimeout:     connectTimeout,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		PoolTimeout:     2 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host}
	}
	return opts
}

// Client exposes the pool for repository construction.
func (c *Client) Client() *redis.Client {
	return c.rdb
}

// HealthCheck backs the /readyz redis probe.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.logger.Info("closing redis attempt store")
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
