package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadDefaults(t *testing.T) {
	cfgPath := writeConfig(t, `
ttsBaseURL: "https://tts.example.com"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "5000" {
		t.Fatalf("port = %q, want 5000", cfg.Port)
	}
	if cfg.DataFile != "library_data.json" {
		t.Fatalf("dataFile = %q", cfg.DataFile)
	}
	if cfg.SegmentLimit != 1000 {
		t.Fatalf("segmentLimit = %d, want 1000", cfg.SegmentLimit)
	}
	if cfg.SynthConcurrency != 4 {
		t.Fatalf("synthConcurrency = %d, want 4", cfg.SynthConcurrency)
	}
	if cfg.DefaultVoice != "alloy" {
		t.Fatalf("defaultVoice = %q", cfg.DefaultVoice)
	}
	if cfg.StorageBackend != "local" {
		t.Fatalf("storageBackend = %q", cfg.StorageBackend)
	}
	if cfg.HistoryTurns != 10 {
		t.Fatalf("historyTurns = %d, want 10", cfg.HistoryTurns)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TTS_BASE_URL", "https://override.example.com")
	t.Setenv("TTS_API_KEY", "env-key")
	t.Setenv("DATA_FILE", "/data/library.json")
	t.Setenv("CHAT_RATE_LIMIT", "30")

	cfgPath := writeConfig(t, `
ttsBaseURL: "https://file.example.com"
ttsAPIKey: "file-key"
redisAddr: "localhost:6379"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TTSBaseURL != "https://override.example.com" {
		t.Fatalf("ttsBaseURL = %q", cfg.TTSBaseURL)
	}
	if cfg.TTSAPIKey != "env-key" {
		t.Fatalf("ttsAPIKey = %q", cfg.TTSAPIKey)
	}
	if cfg.DataFile != "/data/library.json" {
		t.Fatalf("dataFile = %q", cfg.DataFile)
	}
	if cfg.ChatRateLimit != 30 {
		t.Fatalf("chatRateLimit = %d, want 30", cfg.ChatRateLimit)
	}
}

func TestLoadRequiresTTSBaseURL(t *testing.T) {
	cfgPath := writeConfig(t, `
port: "5000"
`)
	if _, err := Load(cfgPath); err == nil || !strings.Contains(err.Error(), "ttsBaseURL") {
		t.Fatalf("err = %v, want ttsBaseURL requirement", err)
	}
}

func TestLoadMinioBackendValidation(t *testing.T) {
	cfgPath := writeConfig(t, `
ttsBaseURL: "https://tts.example.com"
storageBackend: "minio"
minioEndpoint: "localhost:9000"
minioBucket: "audio"
`)
	if _, err := Load(cfgPath); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("err = %v, want minio credentials requirement", err)
	}
}

func TestLoadRateLimitRequiresRedis(t *testing.T) {
	cfgPath := writeConfig(t, `
ttsBaseURL: "https://tts.example.com"
chatRateLimit: 10
`)
	if _, err := Load(cfgPath); err == nil || !strings.Contains(err.Error(), "redisAddr") {
		t.Fatalf("err = %v, want redisAddr requirement", err)
	}
}

func TestLoadUnknownBackend(t *testing.T) {
	cfgPath := writeConfig(t, `
ttsBaseURL: "https://tts.example.com"
storageBackend: "s3"
`)
	if _, err := Load(cfgPath); err == nil || !strings.Contains(err.Error(), "storageBackend") {
		t.Fatalf("err = %v, want unknown backend error", err)
	}
}
