package provider

import (
	"context"

	"github.com/jrsteele09/go-oidc-login/ephemeral"
	"github.com/jrsteele09/go-oidc-login/jwks"
	"github.com/jrsteele09/go-oidc-login/token"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// OIDCClient extends Client for providers that issue ID tokens. On top of the
// base authorization-code flow it validates ID tokens against the issuer's
// JWKS and supports the refresh and password grants.
type OIDCClient struct {
	*Client
	validator *token.Validator
}

// NewOIDCClient builds an OIDC-capable client. The config must carry JWKSURI
// and Issuer; use NewClient for plain OAuth2 providers such as GitHub.
// Callers constructing clients through a per-resolution factory should pass
// one long-lived *jwks.Cache per provider via WithKeyResolver so the cached
// key set is shared across requests instead of re-fetched by every client.
func NewOIDCClient(config Config, store ephemeral.Store, options ...ClientOption) (*OIDCClient, error) {
	if !config.oidc() {
		return nil, errors.Errorf("[NewOIDCClient] provider %q missing JWKS URI or issuer", config.Name)
	}

	base, err := NewClient(config, store, options...)
	if err != nil {
		return nil, err
	}

	keys := base.keys
	if keys == nil {
		cache, err := jwks.NewCache(config.JWKSURI, jwks.WithHTTPClient(base.httpClient))
		if err != nil {
			return nil, errors.Wrap(err, "[NewOIDCClient] jwks.NewCache")
		}
		keys = cache
	}
	validator, err := token.NewValidator(keys, config.Issuer, config.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "[NewOIDCClient] token.NewValidator")
	}

	return &OIDCClient{Client: base, validator: validator}, nil
}

// ValidateIDToken verifies the ID token's signature against the issuer's JWKS
// and checks issuer, audience and expiry.
func (c *OIDCClient) ValidateIDToken(ctx context.Context, rawIDToken string) (*token.Claims, error) {
	claims, err := c.validator.Validate(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[OIDCClient.ValidateIDToken] validator.Validate")
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new token set.
func (c *OIDCClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, errors.New("[OIDCClient.Refresh] empty refresh token")
	}

	source := c.config.oauth2Config().TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		return nil, errors.Wrap(asExchangeError(err), "[OIDCClient.Refresh] token refresh")
	}

	response := newTokenResponse(tok)
	if response.RefreshToken == "" {
		// Providers may omit the refresh token when it is still valid.
		response.RefreshToken = refreshToken
	}
	c.logger.Info().Str("provider", c.config.Name).Msg("token refreshed")
	return response, nil
}

// PasswordGrant performs the resource-owner password credentials grant.
// Most providers disable ROPC; callers should expect ExchangeError from those.
func (c *OIDCClient) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	if username == "" || password == "" {
		return nil, errors.New("[OIDCClient.PasswordGrant] empty username or password")
	}

	tok, err := c.config.oauth2Config().PasswordCredentialsToken(c.httpContext(ctx), username, password)
	if err != nil {
		return nil, errors.Wrap(asExchangeError(err), "[OIDCClient.PasswordGrant] password grant")
	}

	c.logger.Info().Str("provider", c.config.Name).Str("username", username).Msg("password grant succeeded")
	return newTokenResponse(tok), nil
}
