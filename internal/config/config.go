package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"

	// Known NERIS hosts, used for the invalid_client environment-mismatch hint.
	ProductionBaseURL = "https://api.neris.fsri.org/v1"
	TestBaseURL       = "https://api-test.neris.fsri.org/v1"
)

type Config struct {
	Addr         string `env:"NB_ADDR" yaml:"addr"`
	DatabasePath string `env:"NB_DB_PATH" yaml:"db_path"`
	SettingsPath string `env:"NB_SETTINGS_PATH" yaml:"-"`

	BaseURL      string `env:"NERIS_BASE_URL" yaml:"base_url"`
	GrantType    string `env:"NERIS_GRANT_TYPE" yaml:"grant_type"`
	ClientID     string `env:"NERIS_CLIENT_ID" yaml:"client_id"`
	ClientSecret string `env:"NERIS_CLIENT_SECRET" yaml:"client_secret"`
	Username     string `env:"NERIS_USERNAME" yaml:"username"`
	Password     string `env:"NERIS_PASSWORD" yaml:"password"`
	Scope        string `env:"NERIS_SCOPE" yaml:"scope"`
	StaticToken  string `env:"NERIS_STATIC_TOKEN" yaml:"static_token"`

	EntityID     string `env:"NERIS_ENTITY_ID" yaml:"entity_id"`
	DepartmentID string `env:"NERIS_DEPARTMENT_ID" yaml:"department_id"`

	DefaultState     string `env:"NB_DEFAULT_STATE" yaml:"default_state"`
	DefaultCountry   string `env:"NB_DEFAULT_COUNTRY" yaml:"default_country"`
	UTCOffsetMinutes int    `env:"NB_UTC_OFFSET_MINUTES" yaml:"utc_offset_minutes"`
}

// Load parses the environment, overlays an optional YAML settings file for
// values the environment left empty, then validates.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	if path := strings.TrimSpace(cfg.SettingsPath); path != "" {
		if err := overlaySettings(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlaySettings(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("settings file %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(b, &file); err != nil {
		return fmt.Errorf("settings file %s: %w", path, err)
	}
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&cfg.Addr, file.Addr)
	fill(&cfg.DatabasePath, file.DatabasePath)
	fill(&cfg.BaseURL, file.BaseURL)
	fill(&cfg.GrantType, file.GrantType)
	fill(&cfg.ClientID, file.ClientID)
	fill(&cfg.ClientSecret, file.ClientSecret)
	fill(&cfg.Username, file.Username)
	fill(&cfg.Password, file.Password)
	fill(&cfg.Scope, file.Scope)
	fill(&cfg.StaticToken, file.StaticToken)
	fill(&cfg.EntityID, file.EntityID)
	fill(&cfg.DepartmentID, file.DepartmentID)
	fill(&cfg.DefaultState, file.DefaultState)
	fill(&cfg.DefaultCountry, file.DefaultCountry)
	if cfg.UTCOffsetMinutes == 0 {
		cfg.UTCOffsetMinutes = file.UTCOffsetMinutes
	}
	return nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":8080"
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = "data/nerisbridge.sqlite"
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = ProductionBaseURL
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if strings.TrimSpace(c.GrantType) == "" {
		c.GrantType = GrantClientCredentials
	}
	c.GrantType = strings.ToLower(strings.TrimSpace(c.GrantType))
	if strings.TrimSpace(c.DefaultState) == "" {
		c.DefaultState = "NY"
	}
	if strings.TrimSpace(c.DefaultCountry) == "" {
		c.DefaultCountry = "US"
	}
}

func (c *Config) validate() error {
	if c.GrantType != GrantClientCredentials && c.GrantType != GrantPassword {
		return fmt.Errorf("invalid NERIS_GRANT_TYPE %q (must be %q or %q)", c.GrantType, GrantClientCredentials, GrantPassword)
	}
	if strings.TrimSpace(c.StaticToken) != "" {
		return nil
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("missing NERIS_CLIENT_ID (or set NERIS_STATIC_TOKEN to bypass the token endpoint)")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New("missing NERIS_CLIENT_SECRET (or set NERIS_STATIC_TOKEN to bypass the token endpoint)")
	}
	if c.GrantType == GrantPassword {
		if strings.TrimSpace(c.Username) == "" {
			return errors.New("missing NERIS_USERNAME (required for the password grant)")
		}
		if strings.TrimSpace(c.Password) == "" {
			return errors.New("missing NERIS_PASSWORD (required for the password grant)")
		}
	}
	return nil
}
