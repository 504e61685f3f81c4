package provider

import (
	apperrors "github.com/jrsteele09/go-oidc-login/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Config describes a single identity provider. It is copied by value into a
// Client at construction time and never mutated afterwards.
type Config struct {
	Name                  string
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UserinfoEndpoint      string // optional, empty for providers without one
	JWKSURI               string // optional, required only for ID-token validation
	Issuer                string // optional, required only for ID-token validation
	Scopes                []string
	UsePKCE               bool
	Prompt                string            // optional default prompt, e.g. "consent"
	ExtraAuthParams       map[string]string // provider quirks appended to the authorization URL
}

func (c Config) validate() error {
	switch {
	case c.Name == "":
		return errors.Wrap(apperrors.ErrConfiguration, "[Config.validate] missing provider name")
	case c.ClientID == "":
		return errors.Wrapf(apperrors.ErrConfiguration, "[Config.validate] provider %q missing client ID", c.Name)
	case c.RedirectURI == "":
		return errors.Wrapf(apperrors.ErrConfiguration, "[Config.validate] provider %q missing redirect URI", c.Name)
	case c.AuthorizationEndpoint == "":
		return errors.Wrapf(apperrors.ErrConfiguration, "[Config.validate] provider %q missing authorization endpoint", c.Name)
	case c.TokenEndpoint == "":
		return errors.Wrapf(apperrors.ErrConfiguration, "[Config.validate] provider %q missing token endpoint", c.Name)
	}
	return nil
}

// oidc reports whether the config carries enough to validate ID tokens.
func (c Config) oidc() bool {
	return c.JWKSURI != "" && c.Issuer != ""
}

func (c Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthorizationEndpoint,
			TokenURL:  c.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
