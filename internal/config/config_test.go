package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.StoreDriver != "sqlite" || cfg.SQLitePath == "" {
		t.Fatalf("expected sqlite store by default")
	}
	if cfg.DriveDetectionMode != "auto_on" || cfg.Region != "us" {
		t.Fatalf("unexpected runtime defaults")
	}
	if !cfg.MultipleAccidentCallbacks {
		t.Fatalf("expected multiple accident callbacks by default")
	}
	if cfg.AnalysisReorderTimeout != 10*time.Minute || cfg.AnalysisBufferSize != 32 {
		t.Fatalf("unexpected analysis defaults")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DRIVER_ID", "driver-7")
	t.Setenv("DRIVE_DETECTION_MODE", "insurance")
	t.Setenv("REGION", "eu")
	t.Setenv("MULTIPLE_ACCIDENT_CALLBACKS", "false")
	t.Setenv("ANALYSIS_REORDER_TIMEOUT", "30s")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.StoreDriver != "postgres" || cfg.DriverID != "driver-7" {
		t.Fatalf("expected store and driver overrides")
	}
	if cfg.DriveDetectionMode != "insurance" || cfg.Region != "eu" {
		t.Fatalf("expected runtime overrides")
	}
	if cfg.MultipleAccidentCallbacks {
		t.Fatalf("expected multiple accident callbacks disabled")
	}
	if cfg.AnalysisReorderTimeout != 30*time.Second {
		t.Fatalf("expected reorder timeout override, got %v", cfg.AnalysisReorderTimeout)
	}
}
