package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from courseforge.yml.
type ProjectConfig struct {
	// GenerateURL is the base URL of the generation service.
	GenerateURL string `yaml:"generateUrl,omitempty"`

	// Model selects the generation model.
	Model string `yaml:"model,omitempty"`

	// Style carries style/requirements overrides applied to every prompt.
	Style map[string]string `yaml:"style,omitempty"`

	// DataDir is where run state and rendered images are kept.
	DataDir string `yaml:"dataDir,omitempty"`

	MaxPerBatch     int   `yaml:"maxPerBatch,omitempty"`
	MaxLabsPerBatch int   `yaml:"maxLabsPerBatch,omitempty"`
	MaxConcurrent   int64 `yaml:"maxConcurrent,omitempty"`

	// BudgetSeconds and MarginSeconds tune the invocation time guard.
	BudgetSeconds int `yaml:"budgetSeconds,omitempty"`
	MarginSeconds int `yaml:"marginSeconds,omitempty"`

	// RetryMaxAttempts and RetryBaseSeconds override the stock per-stage
	// retry policy. Zero values keep the built-in defaults.
	RetryMaxAttempts int `yaml:"retryMaxAttempts,omitempty"`
	RetryBaseSeconds int `yaml:"retryBaseSeconds,omitempty"`

	Verbose bool `yaml:"verbose,omitempty"`
}

// Budget returns the configured time budget, zero when unset.
func (c *ProjectConfig) Budget() time.Duration {
	return time.Duration(c.BudgetSeconds) * time.Second
}

// Margin returns the configured guard margin, zero when unset.
func (c *ProjectConfig) Margin() time.Duration {
	return time.Duration(c.MarginSeconds) * time.Second
}

// RetryBase returns the configured base backoff delay, zero when unset.
func (c *ProjectConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseSeconds) * time.Second
}

// Load attempts to read courseforge.yml or courseforge.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"courseforge.yml", "courseforge.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}
