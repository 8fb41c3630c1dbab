package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	Presets PresetConfig  `yaml:"presets"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
	Limits  LimitsConfig  `yaml:"limits"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// BackendConfig selects and configures the model provider.
type BackendConfig struct {
	Provider string `yaml:"provider"` // "openai" or "anthropic"
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type PresetConfig struct {
	Default         string `yaml:"default"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
	FilePrefix    string `yaml:"file_prefix"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LimitsConfig bounds work done on user-authored input.
type LimitsConfig struct {
	RegexTimeoutMS int `yaml:"regex_timeout_ms"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8790,
		},
		Backend: BackendConfig{
			Provider: "openai",
		},
		Storage: StorageConfig{
			SQLitePath: ".promptgate.db",
		},
		Presets: PresetConfig{
			Default:         "default",
			CacheTTLSeconds: 300,
		},
		Audit: AuditConfig{
			Enabled:       false,
			Dir:           ".promptgate/audit",
			RetentionDays: 7,
			FilePrefix:    "transform",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Limits: LimitsConfig{
			RegexTimeoutMS: 500,
		},
	}
}

func ConfigDir() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".promptgate")
}

func ConfigPath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".promptgate.yaml")
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Save() error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}
