package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "REVEAL_DELAY_BLOCKS", "GUESS_FEE_WEI", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.DBDriver)
	}
	if cfg.RevealDelayBlocks != 2 {
		t.Fatalf("expected reveal delay 2, got %d", cfg.RevealDelayBlocks)
	}
	if cfg.GuessFeeWei != "100000000000000" {
		t.Fatalf("unexpected guess fee %q", cfg.GuessFeeWei)
	}
	if cfg.AdminAuthWindow() != 5*time.Minute {
		t.Fatalf("expected 5 minute auth window, got %s", cfg.AdminAuthWindow())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("REVEAL_DELAY_BLOCKS", "5")
	t.Setenv("ADMIN_ADDRESS", " 0xABCDEF ")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("API_URL", "http://api.local/")
	t.Setenv("BLOCK_POLL_SECONDS", "-1")

	cfg := Load()
	if cfg.DBDriver != "mysql" {
		t.Fatalf("expected mysql driver, got %q", cfg.DBDriver)
	}
	if cfg.RevealDelayBlocks != 5 {
		t.Fatalf("expected reveal delay 5, got %d", cfg.RevealDelayBlocks)
	}
	if cfg.AdminAddress != "0xabcdef" {
		t.Fatalf("expected normalized admin address, got %q", cfg.AdminAddress)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
	if cfg.APIURL != "http://api.local" {
		t.Fatalf("expected trimmed api url, got %q", cfg.APIURL)
	}
	if cfg.BlockPollSeconds != 3 {
		t.Fatalf("negative poll interval should be ignored, got %d", cfg.BlockPollSeconds)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}

func TestLoadDotEnvDoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PIXPOT_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("PIXPOT_TEST_VALUE", "from-env")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("PIXPOT_TEST_VALUE"); got != "from-env" {
		t.Fatalf("expected existing value to win, got %q", got)
	}
}
