// Package config provides the composition manifest and its loading logic.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/polisai/polis-compose/pkg/domain"
)

// Interceptor names accepted in a type's intercept list.
const (
	InterceptLog     = "log"
	InterceptMetrics = "metrics"
	InterceptTrace   = "trace"
	InterceptPolicy  = "policy"
)

// Config holds the full manifest.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Policy    PolicyConfig    `yaml:"policy"`
	Types     []TypeConfig    `yaml:"types"`

	// dir is the manifest's directory; relative policy module paths resolve
	// against it.
	dir string
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// PolicyConfig names the Rego modules used by the policy interceptor.
type PolicyConfig struct {
	Entrypoint string   `yaml:"entrypoint"`
	Modules    []string `yaml:"modules"`
}

// TypeConfig declares one composed type.
type TypeConfig struct {
	Name      string   `yaml:"name"`
	Base      string   `yaml:"base"`
	Mixins    []string `yaml:"mixins"`
	Intercept []string `yaml:"intercept"`
}

// Default returns a manifest with defaults applied and no types.
func Default() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{ServiceName: "polis-compose"},
		Policy:    PolicyConfig{Entrypoint: "compose/authz"},
	}
}

// Load reads a manifest from a file and applies environment variable overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Manifest path is supplied by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.dir = filepath.Dir(path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes a manifest from YAML, applying defaults, overrides and validation.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("POLIS_COMPOSE_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("POLIS_COMPOSE_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("POLIS_COMPOSE_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("POLIS_COMPOSE_POLICY_ENTRYPOINT"); val != "" {
		cfg.Policy.Entrypoint = val
	}
}

// Validate performs validation of the manifest
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	seen := make(map[string]bool, len(c.Types))
	usesPolicy := false
	for i := range c.Types {
		t := &c.Types[i]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("type %d: %w", i, err)
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			return fmt.Errorf("%w: duplicate type %q", domain.ErrConfigInvalid, t.Name)
		}
		seen[key] = true
		for _, name := range t.Intercept {
			if name == InterceptPolicy {
				usesPolicy = true
			}
		}
	}

	if usesPolicy && len(c.Policy.Modules) == 0 {
		return fmt.Errorf("%w: policy interceptor requires policy.modules", domain.ErrConfigInvalid)
	}

	return nil
}

// Validate performs validation of logging configuration
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("%w: invalid log level %q (must be debug, info, warn, or error)", domain.ErrConfigInvalid, c.Level)
	}
}

// Validate performs validation of a type declaration, normalizing names
func (c *TypeConfig) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: type name is required", domain.ErrConfigInvalid)
	}
	c.Base = strings.TrimSpace(c.Base)
	for i, m := range c.Mixins {
		c.Mixins[i] = strings.TrimSpace(m)
		if c.Mixins[i] == "" {
			return fmt.Errorf("%w: type %q has an empty mixin name", domain.ErrConfigInvalid, c.Name)
		}
	}
	for i, name := range c.Intercept {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case InterceptLog, InterceptMetrics, InterceptTrace, InterceptPolicy:
			c.Intercept[i] = name
		default:
			return fmt.Errorf("%w: type %q has unknown interceptor %q", domain.ErrConfigInvalid, c.Name, name)
		}
	}
	return nil
}

// Type finds a type declaration by name, case-insensitively.
func (c *Config) Type(name string) (TypeConfig, bool) {
	for _, t := range c.Types {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TypeConfig{}, false
}

// PolicyModules reads the configured Rego modules, keyed by file name.
func (c *Config) PolicyModules() (map[string]string, error) {
	modules := make(map[string]string, len(c.Policy.Modules))
	for _, path := range c.Policy.Modules {
		resolved := path
		if !filepath.IsAbs(resolved) && c.dir != "" {
			resolved = filepath.Join(c.dir, resolved)
		}
		//nolint:gosec // Module paths come from the operator's manifest
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy module %s: %w", path, err)
		}
		modules[filepath.Base(path)] = string(data)
	}
	return modules, nil
}
