package database

import (
	"testing"
	"time"

	"github.com/DaveSmith227/duolingo-clone-sub001/internal/infra/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.PostgresSettings{
		Host:            "db.internal",
		Port:            5433,
		User:            "securityd",
		Password:        "p@ss:word/1",
		Database:        "security",
		SSLMode:         "disable",
		MaxConns:        8,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
	}

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}

	if pc.ConnConfig.Host != "db.internal" || pc.ConnConfig.Port != 5433 {
		t.Fatalf("unexpected address %s:%d", pc.ConnConfig.Host, pc.ConnConfig.Port)
	}
	if pc.ConnConfig.Password != "p@ss:word/1" {
		t.Fatalf("password not preserved through dsn escaping: %q", pc.ConnConfig.Password)
	}
	if pc.MaxConns != 8 || pc.MinConns != 2 {
		t.Fatalf("unexpected pool bounds max=%d min=%d", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnLifetime != time.Hour {
		t.Fatalf("unexpected lifetime %s", pc.MaxConnLifetime)
	}

	params := pc.ConnConfig.RuntimeParams
	if params["search_path"] != "security,public" {
		t.Fatalf("unexpected search_path %q", params["search_path"])
	}
	if params["statement_timeout"] != "3000" {
		t.Fatalf("unexpected statement_timeout %q", params["statement_timeout"])
	}
	if params["application_name"] != applicationName {
		t.Fatalf("unexpected application_name %q", params["application_name"])
	}
}

func TestPoolConfig_IgnoresMinAboveMax(t *testing.T) {
	pc, err := poolConfig(config.PostgresSettings{
		Host:     "localhost",
		Port:     5432,
		Database: "security",
		SSLMode:  "disable",
		MaxConns: 2,
		MinConns: 5,
	})
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if pc.MinConns > pc.MaxConns {
		t.Fatalf("min conns %d exceeds max %d", pc.MinConns, pc.MaxConns)
	}
}
