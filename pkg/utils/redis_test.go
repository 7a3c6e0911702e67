package utils

import (
	"testing"
	"time"
)

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected dial timeout %v", c.DialTimeout)
	}
	if c.PoolSize != 20 {
		t.Fatalf("unexpected pool size %d", c.PoolSize)
	}
	if c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected ping timeout %v", c.PingTimeout)
	}
}

func TestNewRedisDeduperValidates(t *testing.T) {
	if _, err := NewRedisDeduper(nil, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
