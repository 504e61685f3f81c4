package provider

import (
	"context"
	"net/http"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
)

// Discover fills base's endpoints from the issuer's well-known OpenID
// configuration document. Endpoints already set on base are kept, so statically
// configured overrides win. The optional httpClient is used for the discovery
// request; nil uses http.DefaultClient.
func Discover(ctx context.Context, issuer string, base Config, httpClient *http.Client) (Config, error) {
	if issuer == "" {
		return Config{}, errors.New("[Discover] empty issuer")
	}
	if httpClient != nil {
		ctx = gooidc.ClientContext(ctx, httpClient)
	}

	discovered, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return Config{}, errors.Wrapf(err, "[Discover] issuer %q", issuer)
	}

	var metadata struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := discovered.Claims(&metadata); err != nil {
		return Config{}, errors.Wrap(err, "[Discover] decoding provider metadata")
	}

	endpoint := discovered.Endpoint()
	if base.AuthorizationEndpoint == "" {
		base.AuthorizationEndpoint = endpoint.AuthURL
	}
	if base.TokenEndpoint == "" {
		base.TokenEndpoint = endpoint.TokenURL
	}
	if base.UserinfoEndpoint == "" {
		base.UserinfoEndpoint = discovered.UserInfoEndpoint()
	}
	if base.JWKSURI == "" {
		base.JWKSURI = metadata.JWKSURI
	}
	if base.Issuer == "" {
		base.Issuer = issuer
	}
	return base, nil
}
