package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/univera-lab/univera-rag/internal/core/domain"
)

// weightTolerance bounds how far the channel weights may drift from summing
// to 1.0 before the configuration is rejected. The retrieval core itself
// never checks this.
const weightTolerance = 0.01

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	APIRateLimitRPS   float64 `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst int     `yaml:"api_rate_limit_burst"`

	PineconeIndexHost string `yaml:"pinecone_index_host"`
	PineconeAPIKey    string `yaml:"pinecone_api_key"`

	EmbeddingURL       string `yaml:"embedding_url"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`

	OpenAIBaseURL     string  `yaml:"openai_base_url"`
	OpenAIAPIKey      string  `yaml:"openai_api_key"`
	OpenAIModel       string  `yaml:"openai_model"`
	OpenAIMaxTokens   int     `yaml:"openai_max_tokens"`
	OpenAITemperature float64 `yaml:"openai_temperature"`
	OpenAITopP        float64 `yaml:"openai_top_p"`

	VectorTopK         int     `yaml:"vector_top_k"`
	LexicalTopK        int     `yaml:"lexical_top_k"`
	FinalTopK          int     `yaml:"final_top_k"`
	VectorWeight       float64 `yaml:"vector_weight"`
	LexicalWeight      float64 `yaml:"lexical_weight"`
	BootstrapSampleCap int     `yaml:"bootstrap_sample_cap"`

	PostgresDSN  string `yaml:"postgres_dsn"`
	HistoryLimit int    `yaml:"history_limit"`
}

func Default() Config {
	return Config{
		APIPort:  "8080",
		LogLevel: "info",

		APIRateLimitRPS:   10,
		APIRateLimitBurst: 20,

		EmbeddingURL:       "http://localhost:8081",
		EmbeddingModel:     "intfloat/multilingual-e5-base",
		EmbeddingDimension: 768,

		OpenAIBaseURL:     "https://api.openai.com",
		OpenAIModel:       "gpt-4o-mini",
		OpenAIMaxTokens:   1000,
		OpenAITemperature: 0.1,
		OpenAITopP:        0.9,

		VectorTopK:         15,
		LexicalTopK:        10,
		FinalTopK:          5,
		VectorWeight:       0.6,
		LexicalWeight:      0.4,
		BootstrapSampleCap: 100,

		HistoryLimit: 50,
	}
}

// Load layers defaults, an optional yaml file and environment variables, in
// that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg.APIPort = envString("API_PORT", cfg.APIPort)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.APIRateLimitRPS = envFloat("API_RATE_LIMIT_RPS", cfg.APIRateLimitRPS)
	cfg.APIRateLimitBurst = envInt("API_RATE_LIMIT_BURST", cfg.APIRateLimitBurst)

	cfg.PineconeIndexHost = envString("PINECONE_INDEX_HOST", cfg.PineconeIndexHost)
	cfg.PineconeAPIKey = envString("PINECONE_API_KEY", cfg.PineconeAPIKey)

	cfg.EmbeddingURL = envString("EMBEDDING_URL", cfg.EmbeddingURL)
	cfg.EmbeddingModel = envString("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDimension = envInt("EMBEDDING_DIMENSION", cfg.EmbeddingDimension)

	cfg.OpenAIBaseURL = envString("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIAPIKey = envString("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = envString("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.OpenAIMaxTokens = envInt("OPENAI_MAX_TOKENS", cfg.OpenAIMaxTokens)
	cfg.OpenAITemperature = envFloat("OPENAI_TEMPERATURE", cfg.OpenAITemperature)
	cfg.OpenAITopP = envFloat("OPENAI_TOP_P", cfg.OpenAITopP)

	cfg.VectorTopK = envInt("VECTOR_TOP_K", cfg.VectorTopK)
	cfg.LexicalTopK = envInt("LEXICAL_TOP_K", cfg.LexicalTopK)
	cfg.FinalTopK = envInt("FINAL_TOP_K", cfg.FinalTopK)
	cfg.VectorWeight = envFloat("VECTOR_WEIGHT", cfg.VectorWeight)
	cfg.LexicalWeight = envFloat("LEXICAL_WEIGHT", cfg.LexicalWeight)
	cfg.BootstrapSampleCap = envInt("BOOTSTRAP_SAMPLE_CAP", cfg.BootstrapSampleCap)

	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.HistoryLimit = envInt("HISTORY_LIMIT", cfg.HistoryLimit)

	return cfg, nil
}

// Validate rejects invalid configuration before any of it reaches the
// retrieval core.
func (c Config) Validate() error {
	var problems []string

	if c.PineconeIndexHost == "" {
		problems = append(problems, "pinecone index host is required")
	}
	if c.PineconeAPIKey == "" {
		problems = append(problems, "pinecone api key is required")
	}
	if c.OpenAIAPIKey == "" {
		problems = append(problems, "openai api key is required")
	}
	if err := ValidateWeights(c.VectorWeight, c.LexicalWeight); err != nil {
		problems = append(problems, err.Error())
	}
	if c.VectorTopK <= 0 || c.LexicalTopK <= 0 || c.FinalTopK <= 0 {
		problems = append(problems, "vector_top_k, lexical_top_k and final_top_k must be positive")
	}
	if c.BootstrapSampleCap <= 0 {
		problems = append(problems, "bootstrap_sample_cap must be positive")
	}
	if c.EmbeddingDimension <= 0 {
		problems = append(problems, "embedding_dimension must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateWeights enforces the sum-to-1.0 invariant on the channel weights.
// Shared with the HTTP boundary for per-request overrides.
func ValidateWeights(vectorWeight, lexicalWeight float64) error {
	if vectorWeight < 0 || lexicalWeight < 0 {
		return fmt.Errorf("channel weights must be non-negative")
	}
	if math.Abs(vectorWeight+lexicalWeight-1.0) > weightTolerance {
		return fmt.Errorf("vector_weight + lexical_weight must equal 1.0, got %.3f", vectorWeight+lexicalWeight)
	}
	return nil
}

// SearchConfig returns the configured retrieval parameters.
func (c Config) SearchConfig() domain.SearchConfig {
	return domain.SearchConfig{
		VectorTopK:    c.VectorTopK,
		LexicalTopK:   c.LexicalTopK,
		FinalTopK:     c.FinalTopK,
		VectorWeight:  c.VectorWeight,
		LexicalWeight: c.LexicalWeight,
	}
}

func envString(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
