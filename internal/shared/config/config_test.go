package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("CALLBACK_BASE_URL", "")
	t.Setenv("CALLBACK_PATH", "")
	t.Setenv("SERVER_URL", "http://orchestrator:5000/")
	t.Setenv("CALLBACK_TIMEOUT_SECONDS", "12")
	t.Setenv("QUEUE_CAPACITY", "8")
	t.Setenv("ML_SERVICE_PORT", "6001")
	t.Setenv("ENV", "prod")

	cfg := Load()

	if cfg.CallbackURL() != "http://orchestrator:5000/api/analysis/webhook/results" {
		t.Fatalf("unexpected callback url: %s", cfg.CallbackURL())
	}
	if cfg.CallbackTimeoutDuration() != 12*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.CallbackTimeoutDuration())
	}
	if cfg.QueueCapacity != 8 {
		t.Fatalf("expected queue capacity 8, got %d", cfg.QueueCapacity)
	}
	if cfg.Port != "6001" {
		t.Fatalf("expected port 6001, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected production env, got %s", cfg.Env)
	}
}

func TestLoadIgnoresInvalidInts(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("MAX_FRAMES", "lots")

	cfg := Load()
	if cfg.MaxFrames != 30 {
		t.Fatalf("expected default max frames, got %d", cfg.MaxFrames)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "temp_dir = \"/var/tmp/media\"\nmax_frames = 12\ncallback_path = \"hooks/results\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path, Defaults())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.TempDir != "/var/tmp/media" {
		t.Fatalf("unexpected temp dir: %s", cfg.TempDir)
	}
	if cfg.MaxFrames != 12 {
		t.Fatalf("unexpected max frames: %d", cfg.MaxFrames)
	}
	if cfg.AudioSampleRate != 16000 {
		t.Fatalf("expected default sample rate to survive, got %d", cfg.AudioSampleRate)
	}
	if cfg.CallbackURL() != "http://localhost:5000/hooks/results" {
		t.Fatalf("unexpected callback url: %s", cfg.CallbackURL())
	}
}

func TestLoadFileRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("max_frames = ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(path, Defaults()); err == nil {
		t.Fatalf("expected parse error")
	}
}
