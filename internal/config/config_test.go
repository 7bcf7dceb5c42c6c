package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	// Transcription options stay empty unless configured: unset values fall
	// through to stored settings and built-ins at submission time.
	if cfg.Model != "" {
		t.Errorf("model = %q, want empty", cfg.Model)
	}
	if cfg.Language != "" {
		t.Errorf("language = %q, want empty", cfg.Language)
	}
	if cfg.ProfanityFilter != "" {
		t.Errorf("profanity filter = %q, want empty", cfg.ProfanityFilter)
	}
	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want 2", cfg.Workers)
	}
	if cfg.CallTimeout != 10*time.Minute {
		t.Errorf("call timeout = %v, want 10m", cfg.CallTimeout)
	}
	if cfg.JWTSecret == "" {
		t.Error("expected a generated JWT secret")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MODEL", "nova-2")
	t.Setenv("WORKERS", "4")
	t.Setenv("CALL_TIMEOUT", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
	if cfg.Model != "nova-2" {
		t.Errorf("model = %q, want nova-2", cfg.Model)
	}
	if cfg.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Workers)
	}
	if cfg.CallTimeout != 5*time.Minute {
		t.Errorf("call timeout = %v, want 5m", cfg.CallTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" {
		t.Errorf("cors origins = %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: 7070\nmodel: enhanced\nmedia_path: /srv/media\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	// Env still wins over the file.
	t.Setenv("MODEL", "nova-3")

	cfg := Load()
	if cfg.Port != 7070 {
		t.Errorf("port = %d, want 7070 from file", cfg.Port)
	}
	if cfg.MediaPath != "/srv/media" {
		t.Errorf("media path = %q, want /srv/media", cfg.MediaPath)
	}
	if cfg.Model != "nova-3" {
		t.Errorf("model = %q, env must win over file", cfg.Model)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{DeepgramAPIKey: "dg-key", ProfanityFilter: "tag"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	// Unset profanity filter is fine, it resolves later.
	cfg = &Config{DeepgramAPIKey: "dg-key"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unset profanity filter rejected: %v", err)
	}

	cfg = &Config{ProfanityFilter: "off"}
	if err := cfg.Validate(); err == nil {
		t.Error("missing Deepgram key accepted")
	}

	cfg = &Config{DeepgramAPIKey: "dg-key", ProfanityFilter: "bleep"}
	if err := cfg.Validate(); err == nil {
		t.Error("bad profanity filter accepted")
	}
}
