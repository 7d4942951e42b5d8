package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Env            string
	Port           string
	FetchTimeoutMs int
	OTel           OTelConfig
	LLM            LLMConfig
	Jira           JiraConfig
	GitHub         GitHubConfig
	Cache          CacheConfig
	Artifacts      ArtifactsConfig
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	TimeoutMs int
}

type JiraConfig struct {
	BaseURL  string
	Username string
	APIToken string
	PageSize int
}

type GitHubConfig struct {
	Token   string
	BaseURL string
}

type CacheConfig struct {
	RedisURL   string
	TTLSeconds int
}

type ArtifactsConfig struct {
	RootDir  string
	PageSize int
}

// Load loads configuration from environment variables. In development it
// first loads a local .env file.
func Load() (Config, error) {
	if getEnv("RELNOTES_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:            getEnv("RELNOTES_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		FetchTimeoutMs: getEnvInt("FETCH_TIMEOUT_MS", 30000),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "relnotes"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		LLM: LLMConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			BaseURL:   getEnv("OPENAI_BASE_URL", ""),
			Model:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 1000),
			TimeoutMs: getEnvInt("LLM_TIMEOUT_MS", 15000),
		},
		Jira: JiraConfig{
			BaseURL:  getEnv("JIRA_BASE_URL", "https://issues.apache.org/jira"),
			Username: getEnv("JIRA_USERNAME", ""),
			APIToken: getEnv("JIRA_API_TOKEN", ""),
			PageSize: getEnvInt("JIRA_PAGE_SIZE", 50),
		},
		GitHub: GitHubConfig{
			Token:   getEnv("GITHUB_TOKEN", ""),
			BaseURL: getEnv("GITHUB_BASE_URL", ""),
		},
		Cache: CacheConfig{
			RedisURL:   getEnv("REDIS_URL", ""),
			TTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 3600),
		},
		Artifacts: ArtifactsConfig{
			RootDir:  getEnv("ARTIFACTS_DIR", "generated_notes"),
			PageSize: getEnvInt("ARTIFACTS_PAGE_SIZE", 20),
		},
	}

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
