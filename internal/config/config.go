package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int      `yaml:"port"`
	MediaPath     string   `yaml:"media_path"`
	DataPath      string   `yaml:"data_path"`
	DBPath        string   `yaml:"db_path"`
	SpeakerMaps   string   `yaml:"speaker_maps_path"`
	JWTSecret     string   `yaml:"jwt_secret"`
	AdminUsername string   `yaml:"admin_username"`
	AdminPassword string   `yaml:"admin_password"`
	CORSOrigins   []string `yaml:"cors_origins"`

	DeepgramAPIKey  string        `yaml:"deepgram_api_key"`
	Model           string        `yaml:"model"`
	Language        string        `yaml:"language"`
	ProfanityFilter string        `yaml:"profanity_filter"`
	Workers         int           `yaml:"workers"`
	CallTimeout     time.Duration `yaml:"call_timeout"`

	OpenAIKey    string `yaml:"openai_api_key"`
	AnthropicKey string `yaml:"anthropic_api_key"`

	WatchPath string `yaml:"watch_path"`
}

// Load builds configuration from environment variables, with an optional YAML
// overlay file pointed at by CONFIG_FILE. Env vars win over file values.
func Load() *Config {
	cfg := &Config{}

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		if err := cfg.applyFile(file); err != nil {
			log.Fatalf("Failed to read config file %s: %v", file, err)
		}
	}

	port, _ := strconv.Atoi(getEnv("PORT", intOr(cfg.Port, "8080")))
	cfg.Port = port

	dataPath := getEnv("DATA_PATH", strOr(cfg.DataPath, "/data"))
	cfg.DataPath = dataPath
	cfg.MediaPath = getEnv("MEDIA_PATH", strOr(cfg.MediaPath, "/media"))
	cfg.DBPath = getEnv("DB_PATH", strOr(cfg.DBPath, dataPath+"/captionworks.db"))
	cfg.SpeakerMaps = getEnv("SPEAKER_MAPS_PATH", strOr(cfg.SpeakerMaps, dataPath+"/speaker_maps"))

	// JWT secret: require explicit setting or generate random
	jwtSecret := getEnv("JWT_SECRET", cfg.JWTSecret)
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			log.Fatalf("Failed to generate random JWT secret: %v", err)
		}
		jwtSecret = hex.EncodeToString(b)
		log.Println("WARNING: JWT_SECRET not set, using random secret. Sessions will not survive restarts. Set JWT_SECRET env var for persistent sessions.")
	}
	cfg.JWTSecret = jwtSecret
	cfg.AdminUsername = getEnv("ADMIN_USERNAME", strOr(cfg.AdminUsername, "admin"))
	cfg.AdminPassword = getEnv("ADMIN_PASSWORD", strOr(cfg.AdminPassword, "admin"))

	// CORS origins: comma-separated list or "*" (default)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		cfg.CORSOrigins = make([]string, 0, len(origins))
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	// Model, language and profanity filter stay empty unless explicitly
	// configured; unset values fall through to the stored settings and then to
	// built-in defaults when a batch is submitted.
	cfg.DeepgramAPIKey = getEnv("DEEPGRAM_API_KEY", cfg.DeepgramAPIKey)
	cfg.Model = getEnv("MODEL", cfg.Model)
	cfg.Language = getEnv("LANGUAGE", cfg.Language)
	cfg.ProfanityFilter = getEnv("PROFANITY_FILTER", cfg.ProfanityFilter)

	workers, _ := strconv.Atoi(getEnv("WORKERS", intOr(cfg.Workers, "2")))
	if workers < 1 {
		workers = 1
	}
	cfg.Workers = workers

	if v := os.Getenv("CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid CALL_TIMEOUT %q: %v", v, err)
		}
		cfg.CallTimeout = d
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Minute
	}

	cfg.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIKey)
	cfg.AnthropicKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicKey)
	cfg.WatchPath = getEnv("WATCH_PATH", cfg.WatchPath)

	return cfg
}

// Validate checks settings that must be present before any batch can run.
func (c *Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY not set")
	}
	switch c.ProfanityFilter {
	case "", "off", "tag", "remove":
	default:
		return fmt.Errorf("invalid PROFANITY_FILTER %q (want off, tag or remove)", c.ProfanityFilter)
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(v int, fallback string) string {
	if v != 0 {
		return strconv.Itoa(v)
	}
	return fallback
}

func strOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
