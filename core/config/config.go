// Package config loads and persists the organisation settings and item
// defaults used by every command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opensdd/osdd-ado/core/hierarchy"
	"gopkg.in/yaml.v3"
)

// Auth modes.
const (
	AuthAzureAuth = "azureauth"
	AuthPAT       = "pat"
)

// DefaultFeatureTag marks features created by this tool.
const DefaultFeatureTag = "osdd-ado"

// Config models ~/.config/osdd-ado/config.yaml.
type Config struct {
	OrgURL        string        `yaml:"org_url"`
	Project       string        `yaml:"project"`
	AssignedTo    string        `yaml:"assigned_to"`
	AreaPath      string        `yaml:"area_path,omitempty"`
	IterationPath string        `yaml:"iteration_path,omitempty"`
	AzureAuthPath string        `yaml:"azureauth_path,omitempty"`
	AuthMode      string        `yaml:"auth_mode,omitempty"`
	FeatureTag    string        `yaml:"feature_tag,omitempty"`
	Delay         time.Duration `yaml:"delay"`
}

// Default returns the values used when nothing has been configured.
func Default() Config {
	return Config{
		AuthMode:   AuthAzureAuth,
		FeatureTag: DefaultFeatureTag,
		Delay:      hierarchy.DefaultDelay,
	}
}

// DefaultPath is ~/.config/osdd-ado/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "osdd-ado", "config.yaml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: ensure dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

var envOverrides = map[string]func(*Config, string){
	"OSDD_ADO_ORG_URL":        func(c *Config, v string) { c.OrgURL = v },
	"OSDD_ADO_PROJECT":        func(c *Config, v string) { c.Project = v },
	"OSDD_ADO_ASSIGNED_TO":    func(c *Config, v string) { c.AssignedTo = v },
	"OSDD_ADO_AREA_PATH":      func(c *Config, v string) { c.AreaPath = v },
	"OSDD_ADO_ITERATION_PATH": func(c *Config, v string) { c.IterationPath = v },
}

// ApplyEnv overrides fields from OSDD_ADO_* environment variables.
func (c *Config) ApplyEnv() {
	for key, set := range envOverrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			set(c, v)
		}
	}
}

// Validate checks the settings needed to reach the API.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OrgURL) == "" {
		errs = append(errs, errors.New("org_url is required"))
	}
	if strings.TrimSpace(c.Project) == "" {
		errs = append(errs, errors.New("project is required"))
	}
	switch c.AuthMode {
	case "", AuthAzureAuth, AuthPAT:
	default:
		errs = append(errs, fmt.Errorf("unknown auth_mode %q", c.AuthMode))
	}
	if c.Delay < 0 {
		errs = append(errs, errors.New("delay cannot be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Set assigns one key by its YAML name.
func (c *Config) Set(key, value string) error {
	switch key {
	case "org_url":
		c.OrgURL = strings.TrimRight(value, "/")
	case "project":
		c.Project = value
	case "assigned_to":
		c.AssignedTo = value
	case "area_path":
		c.AreaPath = value
	case "iteration_path":
		c.IterationPath = value
	case "azureauth_path":
		c.AzureAuthPath = value
	case "auth_mode":
		c.AuthMode = value
	case "feature_tag":
		c.FeatureTag = value
	case "delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("config: invalid delay %q: %w", value, err)
		}
		c.Delay = d
	default:
		return fmt.Errorf("config: unknown key %q", key)
	}
	return nil
}

// ItemDefaults returns the per-item defaults stored in the config.
func (c Config) ItemDefaults() hierarchy.ItemDefaults {
	return hierarchy.ItemDefaults{
		AssignedTo:    c.AssignedTo,
		AreaPath:      c.AreaPath,
		IterationPath: c.IterationPath,
	}
}

// WebBase is "{org_url}/{project}" with the project path-escaped.
func (c Config) WebBase() string {
	return strings.TrimRight(c.OrgURL, "/") + "/" + url.PathEscape(c.Project)
}
