package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Scheduler  Scheduler  `yaml:"scheduler"`
	Scan       Scan       `yaml:"scan"`
	Engagement Engagement `yaml:"engagement"`
	LLM        LLM        `yaml:"llm"`
	Server     Server     `yaml:"server"`
	Output     Output     `yaml:"output"`
	Logging    Logging    `yaml:"logging"`
}

type Scheduler struct {
	ScanIntervalMinutes   int `yaml:"scan_interval_minutes"`
	EngageIntervalMinutes int `yaml:"engage_interval_minutes"`
}

type Scan struct {
	// MaxResults caps results per keyword per platform search.
	MaxResults int `yaml:"max_results"`
}

type Engagement struct {
	BatchSize        int `yaml:"batch_size"`
	PostDelaySeconds int `yaml:"post_delay_seconds"`
	// SentimentThreshold gates automated replies: matches scoring below
	// it are skipped, never answered.
	SentimentThreshold float64 `yaml:"sentiment_threshold"`
}

type LLM struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for keywatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "keywatch")
}

// DataDir returns the XDG data directory for keywatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "keywatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/keywatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'keywatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Scheduler: Scheduler{
			ScanIntervalMinutes:   10,
			EngageIntervalMinutes: 5,
		},
		Scan: Scan{MaxResults: 25},
		Engagement: Engagement{
			BatchSize:          20,
			PostDelaySeconds:   2,
			SentimentThreshold: -0.7,
		},
		LLM: LLM{
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
