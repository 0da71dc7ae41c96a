package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

// APIKeyEnvVar overrides extraction.api_key when set.
const APIKeyEnvVar = "NIM_API_KEY"

type Config struct {
	Registry      Registry      `yaml:"registry"`
	Probe         Probe         `yaml:"probe"`
	Extraction    Extraction    `yaml:"extraction"`
	Output        Output        `yaml:"output"`
	Database      Database      `yaml:"database"`
	Elasticsearch Elasticsearch `yaml:"elasticsearch"`
}

type Registry struct {
	URL    string `yaml:"url"`
	Domain string `yaml:"domain"`
	Scheme string `yaml:"scheme"`
}

type Probe struct {
	Concurrency    int `yaml:"concurrency"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type Extraction struct {
	Enabled            bool    `yaml:"enabled"`
	Endpoint           string  `yaml:"endpoint"`
	Model              string  `yaml:"model"`
	APIKey             string  `yaml:"api_key"`
	Concurrency        int     `yaml:"concurrency"`
	Temperature        float64 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	CharBudget         int     `yaml:"char_budget"`
	RateLimitPerMinute int     `yaml:"rate_limit_per_minute"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
}

type Output struct {
	Dir string `yaml:"dir"`
}

type Database struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type Elasticsearch struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`
}

// Default returns the built-in configuration. The tool must stay runnable with
// nothing but the API key in the environment.
func Default() *Config {
	return &Config{
		Registry: Registry{
			URL:    "https://raw.githubusercontent.com/hackclub/dns/refs/heads/main/hackclub.com.yaml",
			Domain: "hackclub.com",
			Scheme: "http",
		},
		Probe: Probe{
			Concurrency:    20,
			TimeoutSeconds: 15,
		},
		Extraction: Extraction{
			Enabled:            true,
			Endpoint:           "https://integrate.api.nvidia.com/v1/chat/completions",
			Model:              "openai/gpt-oss-120b",
			Concurrency:        20,
			Temperature:        0.1,
			MaxTokens:          1024,
			CharBudget:         12000,
			RateLimitPerMinute: 40,
			TimeoutSeconds:     60,
		},
		Output: Output{
			Dir: "output",
		},
		Elasticsearch: Elasticsearch{
			Index: "hackradar_events",
		},
	}
}

type Manager struct {
	config     *Config
	configPath string
}

func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
	}
}

func (m *Manager) LoadConfig() error {
	// .env is optional and may simply not exist.
	_ = godotenv.Load()

	if m.configPath == "" {
		m.configPath = m.findConfigFile()
	}

	config := Default()

	if m.configPath != "" {
		if DebugLog != nil {
			DebugLog("loading config from %s", m.configPath)
		}

		data, err := os.ReadFile(m.configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if DebugLog != nil {
		DebugLog("no config file found, using built-in defaults")
	}

	if key := os.Getenv(APIKeyEnvVar); key != "" {
		config.Extraction.APIKey = key
	}

	if err := m.validateConfig(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) findConfigFile() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(homeDir, ".hackradar", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}

func (m *Manager) validateConfig(config *Config) error {
	if config.Registry.Domain == "" {
		return fmt.Errorf("registry domain must not be empty")
	}

	if config.Registry.Scheme != "http" && config.Registry.Scheme != "https" {
		return fmt.Errorf("registry scheme must be http or https, got %q", config.Registry.Scheme)
	}

	if config.Probe.Concurrency <= 0 {
		return fmt.Errorf("probe concurrency must be greater than 0")
	}

	if config.Probe.TimeoutSeconds <= 0 {
		return fmt.Errorf("probe timeout must be greater than 0")
	}

	if config.Extraction.Concurrency <= 0 {
		return fmt.Errorf("extraction concurrency must be greater than 0")
	}

	if config.Extraction.CharBudget <= 0 {
		return fmt.Errorf("extraction char budget must be greater than 0")
	}

	if config.Extraction.MaxTokens <= 0 {
		return fmt.Errorf("extraction max tokens must be greater than 0")
	}

	if config.Extraction.TimeoutSeconds <= 0 {
		return fmt.Errorf("extraction timeout must be greater than 0")
	}

	return nil
}
