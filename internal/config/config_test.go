package config

import (
	"testing"
	"time"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")
	t.Setenv("LOCAL_DB_PATH", "")
	t.Setenv("IMAGE_BUCKET", "")
	t.Setenv("IMAGE_QUOTA_LIMIT", "")
	t.Setenv("IMAGE_QUOTA_WINDOW_SECONDS", "")

	cfg := NewConfig()

	if cfg.GetServerPort() != "8080" {
		t.Fatalf("expected default server port 8080, got %s", cfg.GetServerPort())
	}
	if cfg.GetLogLevel() != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.GetLogLevel())
	}
	if cfg.GetLocalDBPath() != "./reader.db" {
		t.Fatalf("expected default local db path ./reader.db, got %s", cfg.GetLocalDBPath())
	}
	if cfg.GetImageBucket() != "images" {
		t.Fatalf("expected default image bucket images, got %s", cfg.GetImageBucket())
	}
	if cfg.GetImageQuotaLimit() != 10 {
		t.Fatalf("expected default quota limit 10, got %d", cfg.GetImageQuotaLimit())
	}
	if cfg.GetImageQuotaWindow() != 24*time.Hour {
		t.Fatalf("expected default quota window 24h, got %s", cfg.GetImageQuotaWindow())
	}
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SUPABASE_URL", "http://localhost:54321")
	t.Setenv("SUPABASE_ANON_KEY", "test-key")
	t.Setenv("IMAGE_QUOTA_LIMIT", "2")
	t.Setenv("IMAGE_QUOTA_WINDOW_SECONDS", "3600")

	cfg := NewConfig()

	if cfg.GetServerPort() != "9090" {
		t.Fatalf("expected server port 9090, got %s", cfg.GetServerPort())
	}
	if cfg.GetLogLevel() != "debug" {
		t.Fatalf("expected log level debug, got %s", cfg.GetLogLevel())
	}
	if cfg.GetSupabaseURL() != "http://localhost:54321" {
		t.Fatalf("expected supabase url http://localhost:54321, got %s", cfg.GetSupabaseURL())
	}
	if cfg.GetSupabaseKey() != "test-key" {
		t.Fatalf("expected supabase key test-key, got %s", cfg.GetSupabaseKey())
	}
	if cfg.GetImageQuotaLimit() != 2 {
		t.Fatalf("expected quota limit 2, got %d", cfg.GetImageQuotaLimit())
	}
	if cfg.GetImageQuotaWindow() != time.Hour {
		t.Fatalf("expected quota window 1h, got %s", cfg.GetImageQuotaWindow())
	}
}

func TestNewConfig_Fallbacks(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_PORT", "9091")
	t.Setenv("IMAGE_QUOTA_LIMIT", "not-a-number")

	cfg := NewConfig()

	if cfg.GetServerPort() != "9091" {
		t.Fatalf("expected server port 9091, got %s", cfg.GetServerPort())
	}
	if cfg.GetImageQuotaLimit() != 10 {
		t.Fatalf("expected default quota limit 10, got %d", cfg.GetImageQuotaLimit())
	}
}
