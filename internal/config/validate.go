package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks the resolved configuration. It aggregates every offending
// field path into one error so the operator can fix a broken deployment in a
// single pass.
//
// Provider credential fields are deliberately not required here: the
// descriptor is loaded and validated per issuance, so a broker can start
// before its credentials are provisioned and report a configuration error on
// the first issue request instead of refusing to boot.
func (c Config) Validate() error {
	var problems []string

	switch c.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		problems = append(problems, fmt.Sprintf("environment must be %q or %q, got %q", EnvProduction, EnvDevelopment, c.Environment))
	}

	if c.ListenAddr == "" {
		problems = append(problems, "listen_addr must be set")
	}

	if c.Provider.Endpoint != "" {
		u, err := url.Parse(c.Provider.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("provider.endpoint %q must be an absolute http(s) URL", c.Provider.Endpoint))
		}
	}

	if c.Cache.Window < time.Second {
		problems = append(problems, "cache.window must be at least 1s")
	}
	if c.Cache.SafetyMargin <= 0 {
		problems = append(problems, "cache.safety_margin must be positive")
	}
	if c.Cache.KeyPrefix == "" {
		problems = append(problems, "cache.key_prefix must be set")
	}
	if c.IsProduction() && c.Cache.Secret == "" {
		problems = append(problems, "cache.secret must be set in production; the derived fallback key is not safe for production use")
	}

	if c.RateLimit.Issue.Window <= 0 || c.RateLimit.Issue.Limit <= 0 {
		problems = append(problems, "rate_limit.issue_window and rate_limit.issue_limit must be positive")
	}
	if c.RateLimit.Admin.Window <= 0 || c.RateLimit.Admin.Limit <= 0 {
		problems = append(problems, "rate_limit.admin_window and rate_limit.admin_limit must be positive")
	}

	if c.Exchange.Timeout <= 0 {
		problems = append(problems, "exchange.timeout must be positive")
	}
	if c.Exchange.AssertionTTL <= 0 {
		problems = append(problems, "exchange.assertion_ttl must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
