package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-oidc-login/ephemeral"
	"github.com/jrsteele09/go-oidc-login/pkce"
	"github.com/jrsteele09/go-oidc-login/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const defaultHTTPTimeout = 30 * time.Second

// TokenResponse is the provider-agnostic shape of a token endpoint response.
type TokenResponse struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	IDToken      string
}

// UserInfo holds the identity attributes returned by a provider's userinfo
// endpoint. Raw carries every field the provider returned.
type UserInfo struct {
	Subject           string
	Email             string
	Name              string
	PreferredUsername string
	Raw               map[string]any
}

// Client drives the authorization-code flow against a single provider. It is
// safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	pkce       *pkce.Manager
	keys       token.KeyResolver
	logger     zerolog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the outbound HTTP client used for all provider
// requests, token exchanges included.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithKeyResolver shares a signing-key source, typically one *jwks.Cache per
// provider, across client instances. Factories produce a fresh client per
// resolution; without a shared resolver each OIDC client would build its own
// cache and re-fetch the key set on every request.
func WithKeyResolver(keys token.KeyResolver) ClientOption {
	return func(c *Client) {
		c.keys = keys
	}
}

// WithLogger sets the logger used for flow milestones.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithProxy routes all outbound provider traffic through the given proxy URL.
func WithProxy(proxyURL *url.URL) ClientOption {
	return func(c *Client) {
		transport := &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		c.httpClient = &http.Client{Timeout: c.httpClient.Timeout, Transport: transport}
	}
}

// NewClient builds a Client for the given provider config. The ephemeral
// store holds PKCE verifiers between redirect and callback and must be the
// same store instance (or backend) across both requests.
func NewClient(config Config, store ephemeral.Store, options ...ClientOption) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "[NewClient] invalid provider config")
	}

	client := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     zerolog.Nop(),
	}
	for _, option := range options {
		option(client)
	}

	if config.UsePKCE {
		if store == nil {
			return nil, errors.Errorf("[NewClient] provider %q uses PKCE but no store was given", config.Name)
		}
		manager, err := pkce.NewManager(store)
		if err != nil {
			return nil, errors.Wrap(err, "[NewClient] pkce.NewManager")
		}
		client.pkce = manager
	}

	return client, nil
}

// Name returns the configured provider name.
func (c *Client) Name() string { return c.config.Name }

// Config returns a copy of the provider configuration.
func (c *Client) Config() Config { return c.config }

// BuildLoginRedirectURL builds the authorization URL the user agent should be
// redirected to. An empty state generates a fresh one; the returned state must
// be round-tripped to ExchangeCode. prompt overrides the configured default,
// extraParams override the configured extra authorization parameters.
func (c *Client) BuildLoginRedirectURL(state, prompt string, extraParams map[string]string) (string, string, error) {
	if state == "" {
		generated, err := pkce.GenerateState()
		if err != nil {
			return "", "", errors.Wrap(err, "[Client.BuildLoginRedirectURL] pkce.GenerateState")
		}
		state = generated
	}

	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("response_mode", "query")}

	if prompt == "" {
		prompt = c.config.Prompt
	}
	if prompt != "" {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", prompt))
	}

	for key, value := range c.config.ExtraAuthParams {
		if _, overridden := extraParams[key]; overridden {
			continue
		}
		opts = append(opts, oauth2.SetAuthURLParam(key, value))
	}
	for key, value := range extraParams {
		opts = append(opts, oauth2.SetAuthURLParam(key, value))
	}

	if c.pkce != nil {
		verifier, challenge, err := pkce.GeneratePair()
		if err != nil {
			return "", "", errors.Wrap(err, "[Client.BuildLoginRedirectURL] pkce.GeneratePair")
		}
		if err := c.pkce.Store(state, verifier); err != nil {
			return "", "", errors.Wrap(err, "[Client.BuildLoginRedirectURL] storing verifier")
		}
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", challenge),
			oauth2.SetAuthURLParam("code_challenge_method", pkce.MethodS256),
		)
	}

	redirectURL := c.config.oauth2Config().AuthCodeURL(state, opts...)
	c.logger.Debug().Str("provider", c.config.Name).Str("state", state).Msg("built login redirect URL")
	return redirectURL, state, nil
}

// ExchangeCode swaps an authorization code for tokens. When the provider uses
// PKCE the verifier stored for state is consumed; a missing verifier fails the
// exchange with ErrPKCEVerifierMissing rather than attempting a PKCE-less
// exchange the provider would reject.
func (c *Client) ExchangeCode(ctx context.Context, code, state string) (*TokenResponse, error) {
	if code == "" {
		return nil, errors.New("[Client.ExchangeCode] empty authorization code")
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("scope", strings.Join(c.config.Scopes, " ")),
	}

	if c.pkce != nil {
		verifier, ok := c.pkce.Retrieve(state)
		if !ok {
			return nil, errors.Wrapf(ErrPKCEVerifierMissing, "[Client.ExchangeCode] state %q", state)
		}
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", verifier))
	}

	tok, err := c.config.oauth2Config().Exchange(c.httpContext(ctx), code, opts...)
	if err != nil {
		return nil, errors.Wrap(asExchangeError(err), "[Client.ExchangeCode] token exchange")
	}

	c.logger.Info().Str("provider", c.config.Name).Msg("authorization code exchanged")
	return newTokenResponse(tok), nil
}

// UserInfo fetches the userinfo document with the given access token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	if c.config.UserinfoEndpoint == "" {
		return nil, errors.Wrapf(ErrNoUserInfoEndpoint, "[Client.UserInfo] provider %q", c.config.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserinfoEndpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UserInfo] building request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UserInfo] userinfo request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UserInfo] reading response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("[Client.UserInfo] userinfo returned status %d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "[Client.UserInfo] decoding response")
	}
	return newUserInfo(raw), nil
}

// httpContext binds the client's HTTP client into ctx so x/oauth2 uses it for
// token endpoint calls.
func (c *Client) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func newTokenResponse(tok *oauth2.Token) *TokenResponse {
	response := &TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		response.IDToken = idToken
	}
	if expiresIn, ok := tok.Extra("expires_in").(float64); ok {
		response.ExpiresIn = int64(expiresIn)
	} else if !tok.Expiry.IsZero() {
		response.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	return response
}

func newUserInfo(raw map[string]any) *UserInfo {
	info := &UserInfo{Raw: raw}
	info.Subject = rawString(raw, "sub")
	if info.Subject == "" {
		// GitHub-style APIs use a numeric id instead of an OIDC sub.
		if id, ok := raw["id"].(float64); ok {
			info.Subject = fmt.Sprintf("%.0f", id)
		}
	}
	info.Email = rawString(raw, "email")
	info.Name = rawString(raw, "name")
	info.PreferredUsername = rawString(raw, "preferred_username")
	if info.PreferredUsername == "" {
		info.PreferredUsername = rawString(raw, "login")
	}
	return info
}

func rawString(raw map[string]any, key string) string {
	value, _ := raw[key].(string)
	return value
}
