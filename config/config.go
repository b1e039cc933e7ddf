package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Database struct {
		ConnectionString string `yaml:"connection_string"`
		Dimension        int    `yaml:"dimension"`
		TextConfig       string `yaml:"text_config"`
	} `yaml:"database"`
	Models struct {
		BaseURL    string `yaml:"base_url"`
		EmbedModel string `yaml:"embed_model"`
		ChatModel  string `yaml:"chat_model"`
	} `yaml:"models"`
	Chunking struct {
		ChunkSize int `yaml:"chunk_size"`
		Overlap   int `yaml:"overlap"`
	} `yaml:"chunking"`
	Search struct {
		Limit     int `yaml:"limit"`
		GraphHops int `yaml:"graph_hops"`
	} `yaml:"search"`
}

// Load loads configuration from file or returns defaults
func Load() (*Config, error) {
	cfg := Default()

	configPath := filepath.Join(os.Getenv("HOME"), ".ragstore", "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save() error {
	configDir := filepath.Join(os.Getenv("HOME"), ".ragstore")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.ConnectionString = "postgres://postgres@localhost/postgres?sslmode=disable"
	cfg.Database.Dimension = 2048
	cfg.Database.TextConfig = "simple"
	cfg.Models.BaseURL = "http://localhost:8000"
	cfg.Models.EmbedModel = "qwen3-vl-embedding"
	cfg.Models.ChatModel = "qwen3-vl-chat"
	cfg.Chunking.ChunkSize = 2048
	cfg.Chunking.Overlap = 0
	cfg.Search.Limit = 10
	cfg.Search.GraphHops = 0

	return cfg
}
