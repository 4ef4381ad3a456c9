package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	SocketPath     string   `json:"socket_path" yaml:"socket_path" toml:"socket_path"`
	ModelsDir      string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel   string   `json:"default_model" yaml:"default_model" toml:"default_model"`
	Language       string   `json:"language" yaml:"language" toml:"language"`
	Preload        []string `json:"preload" yaml:"preload" toml:"preload"`
	TimeoutSeconds int      `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	Engine         string   `json:"engine" yaml:"engine" toml:"engine"`
	WhisperBin     string   `json:"whisper_bin" yaml:"whisper_bin" toml:"whisper_bin"`
	Threads        int      `json:"threads" yaml:"threads" toml:"threads"`
	DebugAddr      string   `json:"debug_addr" yaml:"debug_addr" toml:"debug_addr"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
