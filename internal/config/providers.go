package config

import (
	"fmt"

	"github.com/jrsteele09/go-oidc-login/provider"
)

type Providers struct{}

var _ ProviderConfig = Providers{}

// ProviderConfigs assembles the preset provider configs whose client ID env
// vars are set. Unconfigured providers are silently skipped.
func (p Providers) ProviderConfigs() []provider.Config {
	var configs []provider.Config
	for _, preset := range []provider.Config{
		p.GitHub(),
		p.Google(),
		p.Azure(),
		p.Auth0(),
	} {
		if preset.ClientID != "" {
			configs = append(configs, preset)
		}
	}
	return configs
}

// GitHub is OAuth2-only: no ID tokens, identity comes from the userinfo API.
func (Providers) GitHub() provider.Config {
	return provider.Config{
		Name:                  "github",
		ClientID:              GetEnv("GITHUB_CLIENT_ID", ""),
		ClientSecret:          GetEnv("GITHUB_CLIENT_SECRET", ""),
		RedirectURI:           redirectURI("github"),
		AuthorizationEndpoint: "https://github.com/login/oauth/authorize",
		TokenEndpoint:         "https://github.com/login/oauth/access_token",
		UserinfoEndpoint:      "https://api.github.com/user",
		Scopes:                []string{"read:user", "user:email"},
	}
}

func (Providers) Google() provider.Config {
	return provider.Config{
		Name:                  "google",
		ClientID:              GetEnv("GOOGLE_CLIENT_ID", ""),
		ClientSecret:          GetEnv("GOOGLE_CLIENT_SECRET", ""),
		RedirectURI:           redirectURI("google"),
		AuthorizationEndpoint: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenEndpoint:         "https://oauth2.googleapis.com/token",
		UserinfoEndpoint:      "https://openidconnect.googleapis.com/v1/userinfo",
		JWKSURI:               "https://www.googleapis.com/oauth2/v3/certs",
		Issuer:                "https://accounts.google.com",
		Scopes:                []string{"openid", "profile", "email"},
		UsePKCE:               true,
		Prompt:                "consent",
		// access_type=offline is what makes Google return a refresh token.
		ExtraAuthParams: map[string]string{"access_type": "offline"},
	}
}

func (Providers) Azure() provider.Config {
	tenant := GetEnv("AZURE_TENANT_ID", "common")
	base := fmt.Sprintf("https://login.microsoftonline.com/%s", tenant)
	return provider.Config{
		Name:                  "azure",
		ClientID:              GetEnv("AZURE_CLIENT_ID", ""),
		ClientSecret:          GetEnv("AZURE_CLIENT_SECRET", ""),
		RedirectURI:           redirectURI("azure"),
		AuthorizationEndpoint: base + "/oauth2/v2.0/authorize",
		TokenEndpoint:         base + "/oauth2/v2.0/token",
		UserinfoEndpoint:      "https://graph.microsoft.com/oidc/userinfo",
		JWKSURI:               base + "/discovery/v2.0/keys",
		Issuer:                base + "/v2.0",
		// offline_access is required for Azure to issue refresh tokens.
		Scopes:  []string{"openid", "profile", "email", "offline_access"},
		UsePKCE: true,
		Prompt:  "consent",
	}
}

func (Providers) Auth0() provider.Config {
	domain := GetEnv("AUTH0_DOMAIN", "")
	config := provider.Config{
		Name:                  "auth0",
		ClientID:              GetEnv("AUTH0_CLIENT_ID", ""),
		ClientSecret:          GetEnv("AUTH0_CLIENT_SECRET", ""),
		RedirectURI:           redirectURI("auth0"),
		AuthorizationEndpoint: fmt.Sprintf("https://%s/authorize", domain),
		TokenEndpoint:         fmt.Sprintf("https://%s/oauth/token", domain),
		UserinfoEndpoint:      fmt.Sprintf("https://%s/userinfo", domain),
		JWKSURI:               fmt.Sprintf("https://%s/.well-known/jwks.json", domain),
		// Auth0 issuer carries a trailing slash.
		Issuer:  fmt.Sprintf("https://%s/", domain),
		Scopes:  []string{"openid", "profile", "email", "offline_access"},
		UsePKCE: true,
	}
	if audience := GetEnv("AUTH0_AUDIENCE", ""); audience != "" {
		config.ExtraAuthParams = map[string]string{"audience": audience}
	}
	return config
}

func redirectURI(providerName string) string {
	return fmt.Sprintf("%s/auth/%s/callback", EnvVars{}.GetBaseURL(), providerName)
}
