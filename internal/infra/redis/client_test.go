package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
)

func TestNewClient_PingsServer(t *testing.T) {
	server := miniredis.RunT(t)
	port, err := strconv.Atoi(server.Port())
	if err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}

	client, err := NewClient(context.Background(), config.RedisSettings{Host: server.Host(), Port: port}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}

	server.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail once the server is gone")
	}
}

func TestNewClient_FailsWhenUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	host := server.Host()
	port, _ := strconv.Atoi(server.Port())
	server.Close()

	if _, err := NewClient(context.Background(), config.RedisSettings{Host: host, Port: port}, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected ping failure")
	}
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(config.RedisSettings{Host: "cache.internal", Port: 6380, TLSEnabled: true, MinIdleConns: 50})

	if opts.Addr != "cache.internal:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.PoolSize != defaultPoolSize || opts.MinIdleConns != defaultMinIdleConns {
		t.Fatalf("expected default pool sizing, got %d/%d", opts.PoolSize, opts.MinIdleConns)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.ServerName != "cache.internal" {
		t.Fatalf("expected tls config for cache.internal, got %+v", opts.TLSConfig)
	}

	sized := clientOptions(config.RedisSettings{Host: "localhost", Port: 6379, PoolSize: 32, MinIdleConns: 4})
	if sized.PoolSize != 32 || sized.MinIdleConns != 4 || sized.TLSConfig != nil {
		t.Fatalf("unexpected options: pool=%d idle=%d tls=%v", sized.PoolSize, sized.MinIdleConns, sized.TLSConfig)
	}
}
