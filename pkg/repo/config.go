package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const configVersion = "0.1.0"

// Config stores repository-local settings, persisted as .cogit/config.json.
type Config struct {
	Version   string          `json:"version"`
	Created   time.Time       `json:"created"`
	Diff      DiffConfig      `json:"diff"`
	Embedding EmbeddingConfig `json:"embedding"`
	Query     QueryConfig     `json:"query"`
}

// DiffConfig controls the diff engine.
type DiffConfig struct {
	// ContextLines is the number of unchanged lines kept around each
	// changed run in a hunk.
	ContextLines int `json:"context_lines"`
}

// EmbeddingConfig controls per-commit embedding generation.
type EmbeddingConfig struct {
	Model             string   `json:"model"`
	CompletionModel   string   `json:"completion_model"`
	AllowedExtensions []string `json:"allowed_extensions"`
	MaxFileBytes      int64    `json:"max_file_bytes"`
	Workers           int      `json:"workers"`
	RequestTimeoutSec int      `json:"request_timeout_sec"`
	MaxRetries        int      `json:"max_retries"`
	RequestsPerSecond float64  `json:"requests_per_second"`
}

// QueryConfig controls the retrieval pipeline. The similarity cutoff is
// applied first, then the result set is capped at TopK.
type QueryConfig struct {
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
}

// DefaultConfig returns the configuration written by Init.
func DefaultConfig() *Config {
	return &Config{
		Version: configVersion,
		Created: time.Now().UTC(),
		Diff: DiffConfig{
			ContextLines: 3,
		},
		Embedding: EmbeddingConfig{
			Model:           "text-embedding-3-small",
			CompletionModel: "gpt-4o-mini",
			AllowedExtensions: []string{
				".rs", ".py", ".js", ".ts", ".java", ".cpp", ".c", ".h",
				".go", ".rb", ".php", ".swift", ".kt", ".scala", ".clj",
				".sh", ".bash", ".sql", ".html", ".css", ".json", ".xml",
				".yaml", ".yml", ".toml", ".md", ".txt",
			},
			MaxFileBytes:      256 * 1024,
			Workers:           4,
			RequestTimeoutSec: 30,
			MaxRetries:        3,
			RequestsPerSecond: 5,
		},
		Query: QueryConfig{
			TopK:      5,
			Threshold: 0.7,
		},
	}
}

func (r *Repo) configPath() string {
	return filepath.Join(r.CogitDir, "config.json")
}

// ReadConfig reads .cogit/config.json, then overlays any settings from the
// user-global ~/.cogit.toml. A missing config file yields the defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("read config: unmarshal: %w", err)
	}

	if err := overlayUserConfig(cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return cfg, nil
}

// WriteConfig atomically writes .cogit/config.json.
func (r *Repo) WriteConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("write config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.CogitDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// userConfig mirrors the overridable Config fields. Pointer fields
// distinguish "unset" from zero values.
type userConfig struct {
	Diff struct {
		ContextLines *int `toml:"context_lines"`
	} `toml:"diff"`
	Embedding struct {
		Model             *string  `toml:"model"`
		CompletionModel   *string  `toml:"completion_model"`
		MaxFileBytes      *int64   `toml:"max_file_bytes"`
		Workers           *int     `toml:"workers"`
		RequestTimeoutSec *int     `toml:"request_timeout_sec"`
		MaxRetries        *int     `toml:"max_retries"`
		RequestsPerSecond *float64 `toml:"requests_per_second"`
	} `toml:"embedding"`
	Query struct {
		TopK      *int     `toml:"top_k"`
		Threshold *float64 `toml:"threshold"`
	} `toml:"query"`
}

// overlayUserConfig applies ~/.cogit.toml on top of cfg. A missing file is
// not an error; a malformed one is.
func overlayUserConfig(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".cogit.toml")

	var uc userConfig
	if _, err := toml.DecodeFile(path, &uc); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("user config %s: %w", path, err)
	}

	if uc.Diff.ContextLines != nil {
		cfg.Diff.ContextLines = *uc.Diff.ContextLines
	}
	if uc.Embedding.Model != nil {
		cfg.Embedding.Model = *uc.Embedding.Model
	}
	if uc.Embedding.CompletionModel != nil {
		cfg.Embedding.CompletionModel = *uc.Embedding.CompletionModel
	}
	if uc.Embedding.MaxFileBytes != nil {
		cfg.Embedding.MaxFileBytes = *uc.Embedding.MaxFileBytes
	}
	if uc.Embedding.Workers != nil {
		cfg.Embedding.Workers = *uc.Embedding.Workers
	}
	if uc.Embedding.RequestTimeoutSec != nil {
		cfg.Embedding.RequestTimeoutSec = *uc.Embedding.RequestTimeoutSec
	}
	if uc.Embedding.MaxRetries != nil {
		cfg.Embedding.MaxRetries = *uc.Embedding.MaxRetries
	}
	if uc.Embedding.RequestsPerSecond != nil {
		cfg.Embedding.RequestsPerSecond = *uc.Embedding.RequestsPerSecond
	}
	if uc.Query.TopK != nil {
		cfg.Query.TopK = *uc.Query.TopK
	}
	if uc.Query.Threshold != nil {
		cfg.Query.Threshold = *uc.Query.Threshold
	}

	return nil
}
