// Package imsclient exchanges a service-account descriptor for a bearer
// token at the identity provider. The provider's protocol is a single
// JWT-bearer exchange call: a signed assertion plus the client credentials
// go in, an access token and its lifetime come out.
package imsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock"

	"github.com/sufield/tokenbroker/internal/domain"
	"github.com/sufield/tokenbroker/internal/ports"
)

const (
	exchangePath = "/ims/exchange/jwt"

	// maxResponseBytes caps how much of the provider response is read, so a
	// misbehaving provider cannot balloon memory.
	maxResponseBytes = 1 << 20

	// maxErrorBodyBytes bounds the response excerpt carried in errors.
	maxErrorBodyBytes = 512
)

// Client implements ports.TokenExchanger against a JWT-bearer exchange
// endpoint.
type Client struct {
	httpClient   *http.Client
	clk          clock.Clock
	assertionTTL time.Duration
}

// New returns a client whose exchange calls are bounded by timeout. A
// timeout is reported as an exchange failure; no retry is attempted.
func New(timeout, assertionTTL time.Duration, clk clock.Clock) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		clk:          clk,
		assertionTTL: assertionTTL,
	}
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Exchange signs an assertion with the descriptor's private key and posts it
// to the provider. Every failure wraps domain.ErrExchangeFailure; response
// excerpts carried in errors are truncated and never include the assertion
// or the client secret.
func (c *Client) Exchange(ctx context.Context, creds domain.ServiceCredentials) (ports.ExchangeResult, error) {
	assertion, err := c.signAssertion(creds)
	if err != nil {
		return ports.ExchangeResult{}, fmt.Errorf("%w: %v", domain.ErrExchangeFailure, err)
	}

	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("jwt_token", assertion)

	endpoint := strings.TrimRight(creds.Endpoint, "/") + exchangePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ports.ExchangeResult{}, fmt.Errorf("%w: building request: %v", domain.ErrExchangeFailure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.ExchangeResult{}, fmt.Errorf("%w: %v", domain.ErrExchangeFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ports.ExchangeResult{}, fmt.Errorf("%w: reading response: %v", domain.ErrExchangeFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		return ports.ExchangeResult{}, fmt.Errorf("%w: provider returned status %d: %s",
			domain.ErrExchangeFailure, resp.StatusCode, truncate(string(body), maxErrorBodyBytes))
	}

	var parsed exchangeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ports.ExchangeResult{}, fmt.Errorf("%w: malformed provider response: %v", domain.ErrExchangeFailure, err)
	}
	if parsed.AccessToken == "" || parsed.ExpiresIn <= 0 {
		return ports.ExchangeResult{}, fmt.Errorf("%w: provider response missing access_token or expires_in", domain.ErrExchangeFailure)
	}

	return ports.ExchangeResult{
		AccessToken: parsed.AccessToken,
		ExpiresIn:   time.Duration(parsed.ExpiresIn) * time.Second,
	}, nil
}

// signAssertion builds the RS256 JWT the provider verifies: issuer is the
// organization, subject the technical account, audience the client binding
// at the provider, plus one boolean metascope claim per requested scope.
func (c *Client) signAssertion(creds domain.ServiceCredentials) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(creds.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("parsing signing key: %w", err)
	}

	endpoint := strings.TrimRight(creds.Endpoint, "/")
	now := c.clk.Now()

	claims := jwt.MapClaims{
		"iss": creds.OrganizationID,
		"sub": creds.TechnicalAccountID,
		"aud": endpoint + "/c/" + creds.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(c.assertionTTL).Unix(),
	}
	for _, scope := range creds.Scopes {
		claims[endpoint+"/s/"+scope] = true
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing assertion: %w", err)
	}
	return signed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ ports.TokenExchanger = (*Client)(nil)
