// Package credfile assembles the service-account descriptor from broker
// configuration and the signing key file on local disk. The descriptor is
// built fresh per Load and validated as a whole before it is returned, so a
// partially configured integration never reaches the exchange client.
package credfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sufield/tokenbroker/internal/config"
	"github.com/sufield/tokenbroker/internal/domain"
	"github.com/sufield/tokenbroker/internal/ports"
)

// Source implements ports.CredentialSource over a ProviderConfig plus a PEM
// key file.
type Source struct {
	provider config.ProviderConfig
}

// New returns a source reading the signing key from provider.SigningKeyFile
// on every Load. The key is not cached: it lives in memory only for the
// duration of one issuance.
func New(provider config.ProviderConfig) *Source {
	return &Source{provider: provider}
}

// Load builds and validates the descriptor. An unset or absent key file is
// domain.ErrConfigurationMissing; any field or PEM check failure is
// domain.ErrConfigurationInvalid with the offending fields named.
func (s *Source) Load(ctx context.Context) (domain.ServiceCredentials, error) {
	if s.provider.SigningKeyFile == "" {
		return domain.ServiceCredentials{}, fmt.Errorf("%w: signing key path not configured", domain.ErrConfigurationMissing)
	}

	keyPath := filepath.Clean(s.provider.SigningKeyFile)
	keyPEM, err := os.ReadFile(keyPath) // #nosec G304 - key path comes from operator configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ServiceCredentials{}, fmt.Errorf("%w: signing key file %s does not exist", domain.ErrConfigurationMissing, keyPath)
		}
		return domain.ServiceCredentials{}, fmt.Errorf("%w: reading signing key: %v", domain.ErrConfigurationMissing, err)
	}

	creds := domain.ServiceCredentials{
		Endpoint:           s.provider.Endpoint,
		ClientID:           s.provider.ClientID,
		ClientSecret:       s.provider.ClientSecret,
		PrivateKey:         keyPEM,
		TechnicalAccountID: s.provider.TechnicalAccountID,
		OrganizationID:     s.provider.OrganizationID,
		Scopes:             s.provider.Scopes,
	}
	if err := creds.Validate(); err != nil {
		return domain.ServiceCredentials{}, err
	}
	return creds, nil
}

var _ ports.CredentialSource = (*Source)(nil)
