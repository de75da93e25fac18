// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// RepoDirName is the name of the repository directory inside a working tree.
const RepoDirName = ".vcs"

type Config struct {
	LogLevel        string `json:"log_level"`         // debug, info, warn, error
	DefaultBranch   string `json:"default_branch"`    // branch created by init; never deletable
	CommitCacheSize int    `json:"commit_cache_size"` // commits kept in memory per handle
	ArchiveLevel    int    `json:"archive_level"`     // zstd level for archives (1=fastest, 4=best)
}

func Default() *Config {
	return &Config{
		LogLevel:        "info",
		DefaultBranch:   "master",
		CommitCacheSize: 128,
		ArchiveLevel:    2,
	}
}

// Load reads a JSON config file. Fields absent from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// FromEnv loads the file named by VCS_CONFIG, if any, then applies
// VCS_LOG_LEVEL.
func FromEnv() (*Config, error) {
	config := Default()

	if path := os.Getenv("VCS_CONFIG"); path != "" {
		loaded, err := Load(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if loaded != nil {
			config = loaded
		}
	}

	if level := os.Getenv("VCS_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.DefaultBranch == "" {
		return fmt.Errorf("default_branch cannot be empty")
	}
	if c.CommitCacheSize <= 0 {
		return fmt.Errorf("commit_cache_size must be positive, got %d", c.CommitCacheSize)
	}
	if c.ArchiveLevel < 1 || c.ArchiveLevel > 4 {
		return fmt.Errorf("archive_level must be between 1 and 4, got %d", c.ArchiveLevel)
	}
	return nil
}
