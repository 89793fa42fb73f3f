package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// fileConfig is the yaml representation. Durations are Go duration strings
// ("10m", "12h") so the file format stays human-editable.
type fileConfig struct {
	Environment string `yaml:"environment"`
	ListenAddr  string `yaml:"listen_addr"`

	Provider struct {
		Endpoint           string   `yaml:"endpoint"`
		ClientID           string   `yaml:"client_id"`
		ClientSecret       string   `yaml:"client_secret"`
		SigningKeyFile     string   `yaml:"signing_key_file"`
		TechnicalAccountID string   `yaml:"technical_account_id"`
		OrganizationID     string   `yaml:"organization_id"`
		Scopes             []string `yaml:"scopes"`
	} `yaml:"provider"`

	Cache struct {
		Secret       string `yaml:"secret"`
		Window       string `yaml:"window"`
		SafetyMargin string `yaml:"safety_margin"`
		KeyPrefix    string `yaml:"key_prefix"`
	} `yaml:"cache"`

	RateLimit struct {
		IssueWindow string `yaml:"issue_window"`
		IssueLimit  int    `yaml:"issue_limit"`
		AdminWindow string `yaml:"admin_window"`
		AdminLimit  int    `yaml:"admin_limit"`
	} `yaml:"rate_limit"`

	Exchange struct {
		Timeout      string `yaml:"timeout"`
		AssertionTTL string `yaml:"assertion_ttl"`
	} `yaml:"exchange"`

	HTTP struct {
		ReadHeaderTimeout string `yaml:"read_header_timeout"`
		ReadTimeout       string `yaml:"read_timeout"`
		WriteTimeout      string `yaml:"write_timeout"`
		IdleTimeout       string `yaml:"idle_timeout"`
	} `yaml:"http"`
}

// envOverrides is processed by envconfig under the BROKER_ prefix, e.g.
// BROKER_CLIENT_SECRET or BROKER_ISSUE_LIMIT. Environment values win over
// the file.
type envOverrides struct {
	Environment string `envconfig:"ENVIRONMENT"`
	ListenAddr  string `envconfig:"LISTEN_ADDR"`

	ProviderEndpoint   string   `envconfig:"PROVIDER_ENDPOINT"`
	ClientID           string   `envconfig:"CLIENT_ID"`
	ClientSecret       string   `envconfig:"CLIENT_SECRET"`
	SigningKeyFile     string   `envconfig:"SIGNING_KEY_FILE"`
	TechnicalAccountID string   `envconfig:"TECHNICAL_ACCOUNT_ID"`
	OrganizationID     string   `envconfig:"ORGANIZATION_ID"`
	Scopes             []string `envconfig:"SCOPES"`

	CacheSecret       string        `envconfig:"CACHE_SECRET"`
	CacheWindow       time.Duration `envconfig:"CACHE_WINDOW"`
	CacheSafetyMargin time.Duration `envconfig:"CACHE_SAFETY_MARGIN"`

	IssueWindow time.Duration `envconfig:"ISSUE_WINDOW"`
	IssueLimit  int           `envconfig:"ISSUE_LIMIT"`
	AdminWindow time.Duration `envconfig:"ADMIN_WINDOW"`
	AdminLimit  int           `envconfig:"ADMIN_LIMIT"`

	ExchangeTimeout time.Duration `envconfig:"EXCHANGE_TIMEOUT"`
}

// Load builds the resolved configuration: defaults, then the optional yaml
// file at path (empty path skips the file), then BROKER_* environment
// overrides, then validation. Validation is all-or-nothing; a Config is only
// returned when every check passes.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	// Clean the path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - config path comes from the operator
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&cfg.Environment, fc.Environment)
	setString(&cfg.ListenAddr, fc.ListenAddr)

	setString(&cfg.Provider.Endpoint, fc.Provider.Endpoint)
	setString(&cfg.Provider.ClientID, fc.Provider.ClientID)
	setString(&cfg.Provider.ClientSecret, fc.Provider.ClientSecret)
	setString(&cfg.Provider.SigningKeyFile, fc.Provider.SigningKeyFile)
	setString(&cfg.Provider.TechnicalAccountID, fc.Provider.TechnicalAccountID)
	setString(&cfg.Provider.OrganizationID, fc.Provider.OrganizationID)
	if len(fc.Provider.Scopes) > 0 {
		cfg.Provider.Scopes = fc.Provider.Scopes
	}

	setString(&cfg.Cache.Secret, fc.Cache.Secret)
	setString(&cfg.Cache.KeyPrefix, fc.Cache.KeyPrefix)

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"cache.window", fc.Cache.Window, &cfg.Cache.Window},
		{"cache.safety_margin", fc.Cache.SafetyMargin, &cfg.Cache.SafetyMargin},
		{"rate_limit.issue_window", fc.RateLimit.IssueWindow, &cfg.RateLimit.Issue.Window},
		{"rate_limit.admin_window", fc.RateLimit.AdminWindow, &cfg.RateLimit.Admin.Window},
		{"exchange.timeout", fc.Exchange.Timeout, &cfg.Exchange.Timeout},
		{"exchange.assertion_ttl", fc.Exchange.AssertionTTL, &cfg.Exchange.AssertionTTL},
		{"http.read_header_timeout", fc.HTTP.ReadHeaderTimeout, &cfg.HTTP.ReadHeaderTimeout},
		{"http.read_timeout", fc.HTTP.ReadTimeout, &cfg.HTTP.ReadTimeout},
		{"http.write_timeout", fc.HTTP.WriteTimeout, &cfg.HTTP.WriteTimeout},
		{"http.idle_timeout", fc.HTTP.IdleTimeout, &cfg.HTTP.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.field = parsed
	}

	if fc.RateLimit.IssueLimit > 0 {
		cfg.RateLimit.Issue.Limit = fc.RateLimit.IssueLimit
	}
	if fc.RateLimit.AdminLimit > 0 {
		cfg.RateLimit.Admin.Limit = fc.RateLimit.AdminLimit
	}

	return nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("broker", &env); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	setString(&cfg.Environment, env.Environment)
	setString(&cfg.ListenAddr, env.ListenAddr)

	setString(&cfg.Provider.Endpoint, env.ProviderEndpoint)
	setString(&cfg.Provider.ClientID, env.ClientID)
	setString(&cfg.Provider.ClientSecret, env.ClientSecret)
	setString(&cfg.Provider.SigningKeyFile, env.SigningKeyFile)
	setString(&cfg.Provider.TechnicalAccountID, env.TechnicalAccountID)
	setString(&cfg.Provider.OrganizationID, env.OrganizationID)
	if len(env.Scopes) > 0 {
		cfg.Provider.Scopes = env.Scopes
	}

	setString(&cfg.Cache.Secret, env.CacheSecret)
	setDuration(&cfg.Cache.Window, env.CacheWindow)
	setDuration(&cfg.Cache.SafetyMargin, env.CacheSafetyMargin)

	setDuration(&cfg.RateLimit.Issue.Window, env.IssueWindow)
	setDuration(&cfg.RateLimit.Admin.Window, env.AdminWindow)
	if env.IssueLimit > 0 {
		cfg.RateLimit.Issue.Limit = env.IssueLimit
	}
	if env.AdminLimit > 0 {
		cfg.RateLimit.Admin.Limit = env.AdminLimit
	}

	setDuration(&cfg.Exchange.Timeout, env.ExchangeTimeout)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
