package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the deskpilot service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Cache       CacheConfig       `yaml:"cache"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Scope       ScopeConfig       `yaml:"scope"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CacheConfig holds the optional Redis-backed cache settings. When Addrs is
// empty the service falls back to in-process caches.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	ArtifactTTLHours int      `yaml:"artifact_ttl_hours"`
}

// KnowledgeConfig holds knowledge-base and index persistence settings.
type KnowledgeConfig struct {
	DocumentsPath string `yaml:"documents_path"`
	IndexDir      string `yaml:"index_dir"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// GenerationConfig holds generation provider and worker pool settings.
type GenerationConfig struct {
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	Model              string  `yaml:"model"`
	TimeoutSec         int     `yaml:"timeout_sec"`
	MaxConcurrent      int     `yaml:"max_concurrent"`
	AcquireTimeoutMs   int     `yaml:"acquire_timeout_ms"`
	DraftTemperature   float32 `yaml:"draft_temperature"`
	ExtractTemperature float32 `yaml:"extract_temperature"`
}

// RetrievalConfig holds retriever tunables. The similarity floor is an
// empirically chosen precision-over-recall cutoff, kept configurable.
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k"`
	SimilarityFloor float64 `yaml:"similarity_floor"`
	OverfetchFactor int     `yaml:"overfetch_factor"`
}

// ScopeConfig holds scope classifier settings.
type ScopeConfig struct {
	RefusalConfidence float64 `yaml:"refusal_confidence"`
}

// PromptConfig holds context assembler budgets.
type PromptConfig struct {
	MaxHistoryTurns   int `yaml:"max_history_turns"`
	MaxAccountItems   int `yaml:"max_account_items"`
	PassageCharLimit  int `yaml:"passage_char_limit"`
	PromptCharBudget  int `yaml:"prompt_char_budget"`
	QueryRuneLimit    int `yaml:"query_rune_limit"`
	MaxAnswerTokens   int `yaml:"max_answer_tokens"`
	MaxExtractTokens  int `yaml:"max_extract_tokens"`
}

// EligibilityConfig holds the hard-rule refund windows in days.
type EligibilityConfig struct {
	WarnAfterDays int `yaml:"warn_after_days"`
	DenyAfterDays int `yaml:"deny_after_days"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Cache.ArtifactTTLHours <= 0 {
		c.Cache.ArtifactTTLHours = 24 * 7
	}
	if c.Knowledge.IndexDir == "" {
		c.Knowledge.IndexDir = "data/index"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 45
	}
	if c.Generation.MaxConcurrent <= 0 {
		c.Generation.MaxConcurrent = 4
	}
	if c.Generation.AcquireTimeoutMs <= 0 {
		c.Generation.AcquireTimeoutMs = 500
	}
	if c.Generation.DraftTemperature <= 0 {
		c.Generation.DraftTemperature = 0.6
	}
	if c.Generation.ExtractTemperature <= 0 {
		c.Generation.ExtractTemperature = 0.1
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.SimilarityFloor <= 0 {
		c.Retrieval.SimilarityFloor = 0.35
	}
	if c.Retrieval.OverfetchFactor <= 0 {
		c.Retrieval.OverfetchFactor = 3
	}
	if c.Scope.RefusalConfidence <= 0 {
		c.Scope.RefusalConfidence = 0.7
	}
	if c.Prompt.MaxHistoryTurns <= 0 {
		c.Prompt.MaxHistoryTurns = 5
	}
	if c.Prompt.MaxAccountItems <= 0 {
		c.Prompt.MaxAccountItems = 3
	}
	if c.Prompt.PassageCharLimit <= 0 {
		c.Prompt.PassageCharLimit = 1200
	}
	if c.Prompt.PromptCharBudget <= 0 {
		c.Prompt.PromptCharBudget = 12000
	}
	if c.Prompt.QueryRuneLimit <= 0 {
		c.Prompt.QueryRuneLimit = 2000
	}
	if c.Prompt.MaxAnswerTokens <= 0 {
		c.Prompt.MaxAnswerTokens = 700
	}
	if c.Prompt.MaxExtractTokens <= 0 {
		c.Prompt.MaxExtractTokens = 400
	}
	if c.Eligibility.WarnAfterDays <= 0 {
		c.Eligibility.WarnAfterDays = 30
	}
	if c.Eligibility.DenyAfterDays <= 0 {
		c.Eligibility.DenyAfterDays = 45
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Knowledge.DocumentsPath == "" {
		return fmt.Errorf("knowledge.documents_path is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required")
	}
	if c.Retrieval.SimilarityFloor >= 1 {
		return fmt.Errorf("retrieval.similarity_floor must be below 1, got %g", c.Retrieval.SimilarityFloor)
	}
	if c.Scope.RefusalConfidence > 1 {
		return fmt.Errorf("scope.refusal_confidence must be at most 1, got %g", c.Scope.RefusalConfidence)
	}
	if c.Eligibility.DenyAfterDays < c.Eligibility.WarnAfterDays {
		return fmt.Errorf("eligibility.deny_after_days (%d) must be >= warn_after_days (%d)",
			c.Eligibility.DenyAfterDays, c.Eligibility.WarnAfterDays)
	}
	return nil
}

// findConfigPath locates <env>.yaml in the configs directory.
func findConfigPath(env string) string {
	filename := env + ".yaml"

	// 1. Check ./configs/
	if path := filepath.Join("configs", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "configs", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./configs/
	return filepath.Join("configs", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
