// Package config loads the JSON configuration file, substituting
// ${VAR} and ${VAR:default} references from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Agent     AgentConfig      `json:"agent"`
	Database  DatabaseConfig   `json:"database"`
	StaticDir string           `json:"static_dir"`
}

type ServerConfig struct {
	SocketPort int    `json:"socket_port"`
	HTTPPort   int    `json:"http_port"`
	LogLevel   string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

type AgentConfig struct {
	MaxIterations   int `json:"max_iterations"`
	QueryTimeoutSec int `json:"query_timeout_sec"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			SocketPort: 9999,
			HTTPPort:   8080,
			LogLevel:   "info",
		},
		Agent: AgentConfig{
			MaxIterations:   10,
			QueryTimeoutSec: 30,
		},
		Providers: []ProviderConfig{{
			ID:     "openai",
			Type:   "openai",
			Name:   "OpenAI",
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  "gpt-3.5-turbo",
		}},
	}
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable
// references. A missing file falls back to Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	cfg := Default()
	if err := json.Unmarshal([]byte(resolved), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
