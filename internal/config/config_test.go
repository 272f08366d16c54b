package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/testdb")
	t.Setenv("MONGODB_DATABASE", "collab_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MongoDB.URI == "" || cfg.Redis.Host == "" {
		t.Fatalf("unexpected empty config values: %+v", cfg)
	}
	if cfg.MongoDB.Database != "collab_test" {
		t.Fatalf("database = %q", cfg.MongoDB.Database)
	}
}

func TestLoadConfig_RealtimeDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	rt := cfg.Realtime
	if rt.FlushInterval != 2*time.Second {
		t.Fatalf("flush interval = %v, want 2s", rt.FlushInterval)
	}
	if rt.PingInterval >= rt.PongWait {
		t.Fatalf("ping interval %v must be shorter than pong wait %v", rt.PingInterval, rt.PongWait)
	}
	if rt.SendBuffer <= 0 || rt.MaxMessageBytes <= 0 {
		t.Fatalf("unexpected buffer sizes: %+v", rt)
	}
	if len(rt.AllowedOrigins) != 1 || rt.AllowedOrigins[0] != "*" {
		t.Fatalf("allowed origins = %v", rt.AllowedOrigins)
	}
	if rt.PresenceTTL != 12*time.Hour {
		t.Fatalf("presence ttl = %v", rt.PresenceTTL)
	}
}

func TestLoadConfig_RealtimeOverrides(t *testing.T) {
	t.Setenv("REALTIME_FLUSH_INTERVAL_MS", "250")
	t.Setenv("REALTIME_REQUIRE_TICKET", "true")
	t.Setenv("REALTIME_ALLOWED_ORIGINS", "http://localhost:3000, https://docs.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Realtime.FlushInterval != 250*time.Millisecond {
		t.Fatalf("flush interval = %v", cfg.Realtime.FlushInterval)
	}
	if !cfg.Realtime.RequireTicket {
		t.Fatalf("expected ticket requirement")
	}
	want := []string{"http://localhost:3000", "https://docs.example.com"}
	if len(cfg.Realtime.AllowedOrigins) != 2 || cfg.Realtime.AllowedOrigins[0] != want[0] || cfg.Realtime.AllowedOrigins[1] != want[1] {
		t.Fatalf("allowed origins = %v", cfg.Realtime.AllowedOrigins)
	}
}
