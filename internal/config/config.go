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

// Config holds the recommender configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Model    ModelConfig    `yaml:"model"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Index    IndexConfig    `yaml:"index"`
	Sync     SyncConfig     `yaml:"sync"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
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

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CatalogConfig holds the source catalog (MySQL) settings.
// The DSN is only required by the sync job; the API server never touches it.
type CatalogConfig struct {
	DSN string `yaml:"dsn"`
}

// ModelConfig holds model service settings.
type ModelConfig struct {
	Provider string       `yaml:"provider"` // ollama (default), openai
	Ollama   OllamaConfig `yaml:"ollama"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// OllamaConfig holds Ollama connection and model settings.
type OllamaConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	EmbedModel    string `yaml:"embed_model"`
	GenerateModel string `yaml:"generate_model"`
	TimeoutSec    int    `yaml:"timeout_sec"`
}

// OpenAIConfig holds settings for an OpenAI-compatible model provider.
type OpenAIConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	EmbedModel    string `yaml:"embed_model"`
	GenerateModel string `yaml:"generate_model"`
}

// PipelineConfig holds recommendation pipeline tunables.
type PipelineConfig struct {
	TopK              int `yaml:"top_k"`               // K: candidates retrieved per query
	SelectN           int `yaml:"select_n"`            // N: candidates the filter keeps
	MinSelections     int `yaml:"min_selections"`      // acceptance threshold for parsed indices
	SummaryMaxChars   int `yaml:"summary_max_chars"`   // summary truncation in the filter prompt
	ReasonMaxChars    int `yaml:"reason_max_chars"`    // reason length bound
	ExplainTimeoutSec int `yaml:"explain_timeout_sec"` // per-item generation timeout
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Dimensions      int `yaml:"dimensions"`
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// SyncConfig holds ingestion job settings.
type SyncConfig struct {
	IntervalSec int `yaml:"interval_sec"`
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
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "ollama"
	}
	if c.Model.Ollama.Host == "" {
		c.Model.Ollama.Host = "ollama"
	}
	if c.Model.Ollama.Port == "" {
		c.Model.Ollama.Port = "11434"
	}
	if c.Model.Ollama.EmbedModel == "" {
		c.Model.Ollama.EmbedModel = "nomic-embed-text"
	}
	if c.Model.Ollama.GenerateModel == "" {
		c.Model.Ollama.GenerateModel = "llama3.2"
	}
	if c.Model.Ollama.TimeoutSec <= 0 {
		c.Model.Ollama.TimeoutSec = 60
	}
	if c.Pipeline.TopK <= 0 {
		c.Pipeline.TopK = 6
	}
	if c.Pipeline.SelectN <= 0 {
		c.Pipeline.SelectN = 3
	}
	if c.Pipeline.MinSelections <= 0 {
		c.Pipeline.MinSelections = 2
	}
	if c.Pipeline.SummaryMaxChars <= 0 {
		c.Pipeline.SummaryMaxChars = 200
	}
	if c.Pipeline.ReasonMaxChars <= 0 {
		c.Pipeline.ReasonMaxChars = 250
	}
	if c.Pipeline.ExplainTimeoutSec <= 0 {
		c.Pipeline.ExplainTimeoutSec = 30
	}
	if c.Index.Dimensions <= 0 {
		c.Index.Dimensions = 768 // nomic-embed-text
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Sync.IntervalSec <= 0 {
		c.Sync.IntervalSec = 3 * 60 * 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Model.Provider {
	case "ollama", "openai":
		// ok
	default:
		return fmt.Errorf("model.provider must be \"ollama\" or \"openai\", got %q", c.Model.Provider)
	}
	if c.Pipeline.SelectN > c.Pipeline.TopK {
		return fmt.Errorf("pipeline.select_n (%d) must not exceed pipeline.top_k (%d)",
			c.Pipeline.SelectN, c.Pipeline.TopK)
	}
	if c.Pipeline.MinSelections > c.Pipeline.SelectN {
		return fmt.Errorf("pipeline.min_selections (%d) must not exceed pipeline.select_n (%d)",
			c.Pipeline.MinSelections, c.Pipeline.SelectN)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
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
