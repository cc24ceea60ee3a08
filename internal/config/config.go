package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

const (
	StorageMemory    = "memory"
	StorageBolt      = "bolt"
	StorageFirestore = "firestore"
	StorageSQL       = "sql"
)

type ProviderConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

type Config struct {
	Mode     Mode
	Port     string
	LogLevel string

	StorageBackend string // memory, bolt, firestore or sql
	BoltPath       string
	SQLDSN         string
	GCPProjectID   string
	GCPLocation    string

	OpenAI ProviderConfig
	Claude ProviderConfig
	Gemini ProviderConfig

	TTSModel string
	TTSVoice string

	UseMockLLM bool   // true = register the mock provider and synthesizer
	ProxyURL   string // http(s):// or socks5:// for outbound provider calls

	StreamIdleTimeout time.Duration
	RetryAttempts     int
	RetryInitial      time.Duration
	RetryMax          time.Duration

	HistoryLimit       int
	HistoryTokenBudget int

	PlanLength       int
	QuestionBankPath string

	MaxUploadBytes int64
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// LoadDotEnv loads .env.local then .env. Variables already set in the
// environment are never overridden; missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env.local", ".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads all env vars and builds the config
func Load() (*Config, error) {
	if getBoolEnv("MORNINGSTAR_DOTENV", true) {
		if err := LoadDotEnv(); err != nil {
			return nil, err
		}
	}

	var mode Mode
	switch strings.ToLower(getEnv("MORNINGSTAR_MODE", "local")) {
	case "cloud", "gcp":
		mode = ModeCloud
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode:     mode,
		Port:     getEnv("MORNINGSTAR_PORT", getEnv("PORT", "8080")),
		LogLevel: getEnv("MORNINGSTAR_LOG_LEVEL", "info"),

		StorageBackend: strings.ToLower(getEnv("MORNINGSTAR_STORAGE_BACKEND", StorageMemory)),
		BoltPath:       getEnv("MORNINGSTAR_BOLT_PATH", "morningstar.db"),
		SQLDSN:         getEnv("MORNINGSTAR_SQL_DSN", ""),
		GCPProjectID:   getEnv("MORNINGSTAR_GCP_PROJECT", ""),
		GCPLocation:    getEnv("MORNINGSTAR_GCP_LOCATION", "us-central1"),

		OpenAI: ProviderConfig{
			APIKey:       getEnv("MORNINGSTAR_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL:      getEnv("MORNINGSTAR_OPENAI_BASE_URL", ""),
			DefaultModel: getEnv("MORNINGSTAR_OPENAI_MODEL", "gpt-4o-mini"),
		},
		Claude: ProviderConfig{
			APIKey:       getEnv("MORNINGSTAR_CLAUDE_API_KEY", os.Getenv("ANTHROPIC_API_KEY")),
			BaseURL:      getEnv("MORNINGSTAR_CLAUDE_BASE_URL", ""),
			DefaultModel: getEnv("MORNINGSTAR_CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		},
		Gemini: ProviderConfig{
			APIKey:       getEnv("MORNINGSTAR_GEMINI_API_KEY", os.Getenv("GEMINI_API_KEY")),
			BaseURL:      getEnv("MORNINGSTAR_GEMINI_BASE_URL", ""),
			DefaultModel: getEnv("MORNINGSTAR_GEMINI_MODEL", "gemini-2.5-flash"),
		},

		TTSModel: getEnv("MORNINGSTAR_TTS_MODEL", "gpt-4o-mini-tts"),
		TTSVoice: getEnv("MORNINGSTAR_TTS_VOICE", "alloy"),

		UseMockLLM: getBoolEnv("MORNINGSTAR_USE_MOCK_LLM", mode == ModeLocal),
		ProxyURL:   getEnv("MORNINGSTAR_PROXY_URL", ""),

		StreamIdleTimeout: getDurationEnv("MORNINGSTAR_STREAM_IDLE_TIMEOUT", 45*time.Second),
		RetryAttempts:     getIntEnv("MORNINGSTAR_RETRY_ATTEMPTS", 3),
		RetryInitial:      getDurationEnv("MORNINGSTAR_RETRY_INITIAL_BACKOFF", 300*time.Millisecond),
		RetryMax:          getDurationEnv("MORNINGSTAR_RETRY_MAX_BACKOFF", 3*time.Second),

		HistoryLimit:       getIntEnv("MORNINGSTAR_HISTORY_LIMIT", 20),
		HistoryTokenBudget: getIntEnv("MORNINGSTAR_HISTORY_TOKEN_BUDGET", 6000),

		PlanLength:       getIntEnv("MORNINGSTAR_PLAN_LENGTH", 5),
		QuestionBankPath: getEnv("MORNINGSTAR_QUESTION_BANK", ""),

		MaxUploadBytes: int64(getIntEnv("MORNINGSTAR_MAX_UPLOAD_BYTES", 20<<20)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StorageBolt:
		if c.BoltPath == "" {
			return errors.New("MORNINGSTAR_BOLT_PATH must be set for the bolt backend")
		}
	case StorageFirestore:
		if c.GCPProjectID == "" {
			return errors.New("MORNINGSTAR_GCP_PROJECT must be set for the firestore backend")
		}
	case StorageSQL:
		if c.SQLDSN == "" {
			return errors.New("MORNINGSTAR_SQL_DSN must be set for the sql backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	if c.StreamIdleTimeout <= 0 {
		return errors.New("stream idle timeout must be positive")
	}
	if c.RetryAttempts < 1 {
		return errors.New("retry attempts must be at least 1")
	}
	if c.RetryMax < c.RetryInitial {
		return errors.New("max retry backoff must not be smaller than the initial backoff")
	}
	if c.PlanLength < 1 {
		return errors.New("plan length must be at least 1")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max upload bytes must be positive")
	}
	if c.Mode == ModeCloud && !c.UseMockLLM &&
		c.OpenAI.APIKey == "" && c.Claude.APIKey == "" && c.Gemini.APIKey == "" && c.GCPProjectID == "" {
		return errors.New("cloud mode needs at least one provider credential")
	}
	return nil
}
