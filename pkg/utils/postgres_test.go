package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfigDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 30 || got.MaxIdleConns != 10 {
		t.Fatalf("conn defaults = %d/%d", got.MaxOpenConns, got.MaxIdleConns)
	}
	if got.ConnMaxLifetime != time.Hour || got.ConnMaxIdleTime != 10*time.Minute {
		t.Fatalf("lifetime defaults = %v/%v", got.ConnMaxLifetime, got.ConnMaxIdleTime)
	}
	if got.PingTimeout != 5*time.Second {
		t.Fatalf("ping timeout = %v", got.PingTimeout)
	}
}

func TestPostgresPoolConfigKeepsExplicitValues(t *testing.T) {
	in := PostgresPoolConfig{MaxOpenConns: 5, PingTimeout: time.Second}
	got := in.withDefaults()
	if got.MaxOpenConns != 5 {
		t.Fatalf("MaxOpenConns = %d, want 5", got.MaxOpenConns)
	}
	if got.PingTimeout != time.Second {
		t.Fatalf("PingTimeout = %v, want 1s", got.PingTimeout)
	}
	if got.MaxIdleConns != 10 {
		t.Fatalf("MaxIdleConns = %d, want default 10", got.MaxIdleConns)
	}
}
