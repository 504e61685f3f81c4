package provider

import (
	"context"

	"github.com/jrsteele09/go-oidc-login/token"
)

// Authenticator is the capability every provider client has: it can run the
// authorization-code flow and fetch userinfo.
type Authenticator interface {
	Name() string
	Config() Config
	BuildLoginRedirectURL(state, prompt string, extraParams map[string]string) (string, string, error)
	ExchangeCode(ctx context.Context, code, state string) (*TokenResponse, error)
	UserInfo(ctx context.Context, accessToken string) (*UserInfo, error)
}

// Refreshable is implemented by clients supporting the refresh-token grant.
type Refreshable interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// PasswordGranter is implemented by clients supporting the resource-owner
// password credentials grant.
type PasswordGranter interface {
	PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error)
}

// Validatable is implemented by clients that can verify ID tokens against the
// issuer's JWKS. Callers type-assert and fall back to userinfo otherwise.
type Validatable interface {
	ValidateIDToken(ctx context.Context, rawIDToken string) (*token.Claims, error)
}

var (
	_ Authenticator   = (*Client)(nil)
	_ Authenticator   = (*OIDCClient)(nil)
	_ Refreshable     = (*OIDCClient)(nil)
	_ PasswordGranter = (*OIDCClient)(nil)
	_ Validatable     = (*OIDCClient)(nil)
)
