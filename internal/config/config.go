package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/darmiel/insurelink/internal/compliance"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/retry"
	"github.com/darmiel/insurelink/internal/validation"
)

type Config struct {
	Providers  []core.ProviderConfig `yaml:"providers"`
	Audit      AuditConfig           `yaml:"audit"`
	Retry      RetryConfig           `yaml:"retry"`
	Compliance ComplianceConfig      `yaml:"compliance"`
	Admin      AdminConfig           `yaml:"admin"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"

	// Buffer is the size of the queue in front of the auditor. Entries are dropped
	// when it is full. Zero writes synchronously.
	Buffer int `yaml:"buffer"`

	// Capacity bounds the number of entries kept by the memory auditor.
	Capacity int `yaml:"capacity"`
}

// RetryConfig controls the retry queues of all providers.
type RetryConfig struct {
	retry.Policy `yaml:",inline"`

	// Interval is the period of the background drain. Negative disables it.
	Interval time.Duration `yaml:"interval"`
}

// ComplianceConfig selects the advisory compliance rules.
type ComplianceConfig struct {
	DisableDefaults bool              `yaml:"disable_defaults"`
	Rules           []compliance.Rule `yaml:"rules"`
}

// AdminConfig protects the admin routes of the API.
type AdminConfig struct {
	// JWTSecret verifies the HS256 admin tokens. JWTSecretEnv names an environment
	// variable to read it from instead.
	JWTSecret    string `yaml:"jwt_secret"`
	JWTSecretEnv string `yaml:"jwt_secret_env"`
}

// Secret returns the configured admin secret, or nil if the admin routes are disabled.
func (a AdminConfig) Secret() []byte {
	if a.JWTSecretEnv != "" {
		if v := os.Getenv(a.JWTSecretEnv); v != "" {
			return []byte(v)
		}
	}
	if a.JWTSecret == "" {
		return nil
	}
	return []byte(a.JWTSecret)
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Providers))
	for idx, p := range c.Providers {
		if err := validation.ValidateProviderConfig(p); err != nil {
			return fmt.Errorf("provider at index %d: %w", idx, err)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("provider '%s' is configured more than once", p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	if c.Audit.Enabled {
		switch c.Audit.Type {
		case "", "memory":
		case "file":
			if c.Audit.Path == "" {
				return fmt.Errorf("file audit requires a path")
			}
		default:
			return fmt.Errorf("unknown audit type '%s'", c.Audit.Type)
		}
	}
	if c.Audit.Buffer < 0 || c.Audit.Capacity < 0 {
		return fmt.Errorf("audit buffer and capacity must not be negative")
	}

	if c.Retry.MaxAttempts < 0 || c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry policy must not be negative")
	}

	if _, err := c.ComplianceRules(); err != nil {
		return fmt.Errorf("validating compliance rules: %w", err)
	}
	return nil
}

// ComplianceRules returns the compiled rule set: the default rules unless disabled,
// followed by the configured ones.
func (c *Config) ComplianceRules() ([]compliance.Rule, error) {
	var rules []compliance.Rule
	if !c.Compliance.DisableDefaults {
		rules = append(rules, compliance.DefaultRules()...)
	}
	rules = append(rules, c.Compliance.Rules...)
	return compliance.Compile(rules)
}
