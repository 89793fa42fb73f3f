package domain

import (
	"encoding/pem"
	"fmt"
	"strings"
)

// ServiceCredentials is the service-account descriptor used to authenticate
// to the identity provider. It is loaded on demand for a single issuance,
// validated as a whole before any network call, and never retained or logged
// in cleartext.
type ServiceCredentials struct {
	// Endpoint is the identity provider base URL, e.g. "https://ims.example.com".
	Endpoint string

	// ClientID and ClientSecret identify the integration at the provider.
	ClientID     string
	ClientSecret string

	// PrivateKey is the PEM-encoded RSA key used to sign the exchange assertion.
	PrivateKey []byte

	// TechnicalAccountID is the service account the assertion is issued for.
	TechnicalAccountID string

	// OrganizationID is the owning organization at the provider.
	OrganizationID string

	// Scopes are the metascopes requested on the issued token.
	Scopes []string
}

// Validate checks every field before the descriptor may be used.
// Validation is all-or-nothing: a descriptor that fails any check must not
// be trusted for a network call. The returned error wraps
// ErrConfigurationInvalid and names every offending field.
func (c ServiceCredentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client_secret")
	}
	if len(c.PrivateKey) == 0 {
		missing = append(missing, "private_key")
	}
	if strings.TrimSpace(c.TechnicalAccountID) == "" {
		missing = append(missing, "technical_account_id")
	}
	if strings.TrimSpace(c.OrganizationID) == "" {
		missing = append(missing, "organization_id")
	}
	if len(c.Scopes) == 0 {
		missing = append(missing, "scopes")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing fields: %s", ErrConfigurationInvalid, strings.Join(missing, ", "))
	}

	block, _ := pem.Decode(c.PrivateKey)
	if block == nil {
		return fmt.Errorf("%w: private_key is not a PEM block", ErrConfigurationInvalid)
	}
	if !strings.Contains(block.Type, "PRIVATE KEY") {
		return fmt.Errorf("%w: private_key PEM block type %q is not a private key", ErrConfigurationInvalid, block.Type)
	}

	return nil
}

// SanitizedSummary returns the loggable form of the descriptor. Secrets are
// masked; the summary is what failure audit records carry.
func (c ServiceCredentials) SanitizedSummary() string {
	return fmt.Sprintf("endpoint=%s client_id=%s org=%s account=%s scopes=%s secret=%s key=%s",
		c.Endpoint,
		MaskSecret(c.ClientID),
		c.OrganizationID,
		MaskSecret(c.TechnicalAccountID),
		strings.Join(c.Scopes, ","),
		redactedMarker(c.ClientSecret),
		redactedMarker(string(c.PrivateKey)),
	)
}

// MaskSecret keeps the first four characters of a value and hides the rest.
// Values shorter than eight characters are fully redacted.
func MaskSecret(v string) string {
	if len(v) < 8 {
		return "****"
	}
	return v[:4] + strings.Repeat("*", 4)
}

func redactedMarker(v string) string {
	if v == "" {
		return "<unset>"
	}
	return "<redacted>"
}
