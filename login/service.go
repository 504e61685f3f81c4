// Package login orchestrates the full sign-in flow across registered
// providers: building the redirect, completing the callback, refreshing
// tokens. It owns no HTTP routes; callers wire it into their own handlers.
package login

import (
	"context"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-oidc-login/internal/errors"
	"github.com/jrsteele09/go-oidc-login/provider"
	"github.com/jrsteele09/go-oidc-login/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Challenge is the redirect handed to the user agent to start a login.
type Challenge struct {
	URL      string
	State    string
	Provider string
}

// Result is a completed login. Claims come from the validated ID token when
// the provider issues one, from the userinfo endpoint otherwise.
type Result struct {
	SessionID    uuid.UUID
	Provider     string
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int64
	Claims       *token.Claims
}

// Service glues the provider registry to the token plumbing.
type Service struct {
	registry *provider.Registry
	logger   zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(registry *provider.Registry, options ...ServiceOption) (*Service, error) {
	if registry == nil {
		return nil, errors.New("[login.NewService] nil registry")
	}
	service := &Service{registry: registry, logger: zerolog.Nop()}
	for _, option := range options {
		option(service)
	}
	return service, nil
}

// Begin resolves the provider and builds the login redirect. An empty
// providerName uses the registry's default.
func (s *Service) Begin(providerName, state, prompt string) (*Challenge, error) {
	client, err := s.registry.Resolve(providerName)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Begin] registry.Resolve")
	}

	redirectURL, state, err := client.BuildLoginRedirectURL(state, prompt, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Begin] BuildLoginRedirectURL")
	}

	s.logger.Info().Str("provider", client.Name()).Msg("login started")
	return &Challenge{URL: redirectURL, State: state, Provider: client.Name()}, nil
}

// Complete finishes the callback leg: code exchange, then identity resolution
// through the ID token or the userinfo endpoint.
func (s *Service) Complete(ctx context.Context, providerName, code, state string) (*Result, error) {
	client, err := s.registry.Resolve(providerName)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Complete] registry.Resolve")
	}

	tokens, err := client.ExchangeCode(ctx, code, state)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Complete] ExchangeCode")
	}

	result, err := s.newResult(ctx, client, tokens)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Complete] resolving identity")
	}

	s.logger.Info().
		Str("provider", client.Name()).
		Str("sessionID", result.SessionID.String()).
		Str("subject", result.Claims.Subject).
		Msg("login completed")
	return result, nil
}

// Refresh exchanges a refresh token with a provider that supports the grant.
func (s *Service) Refresh(ctx context.Context, providerName, refreshToken string) (*provider.TokenResponse, error) {
	client, err := s.registry.Resolve(providerName)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] registry.Resolve")
	}

	refreshable, ok := client.(provider.Refreshable)
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrUnsupported, "[Service.Refresh] provider %q cannot refresh tokens", client.Name())
	}

	tokens, err := refreshable.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] Refresh")
	}
	return tokens, nil
}

// PasswordLogin runs the resource-owner password grant against a provider
// that supports it.
func (s *Service) PasswordLogin(ctx context.Context, providerName, username, password string) (*Result, error) {
	client, err := s.registry.Resolve(providerName)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.PasswordLogin] registry.Resolve")
	}

	granter, ok := client.(provider.PasswordGranter)
	if !ok {
		return nil, errors.Wrapf(apperrors.ErrUnsupported, "[Service.PasswordLogin] provider %q cannot grant passwords", client.Name())
	}

	tokens, err := granter.PasswordGrant(ctx, username, password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.PasswordLogin] PasswordGrant")
	}

	result, err := s.newResult(ctx, client, tokens)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.PasswordLogin] resolving identity")
	}
	return result, nil
}

func (s *Service) newResult(ctx context.Context, client provider.Authenticator, tokens *provider.TokenResponse) (*Result, error) {
	claims, err := s.resolveClaims(ctx, client, tokens)
	if err != nil {
		return nil, err
	}

	return &Result{
		SessionID:    uuid.New(),
		Provider:     client.Name(),
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		Claims:       claims,
	}, nil
}

// resolveClaims prefers a validated ID token; OAuth2-only providers (and
// grants that return no ID token) fall back to the userinfo endpoint.
func (s *Service) resolveClaims(ctx context.Context, client provider.Authenticator, tokens *provider.TokenResponse) (*token.Claims, error) {
	if validatable, ok := client.(provider.Validatable); ok && tokens.IDToken != "" {
		claims, err := validatable.ValidateIDToken(ctx, tokens.IDToken)
		if err != nil {
			return nil, errors.Wrap(err, "ID token rejected")
		}
		return claims, nil
	}

	info, err := client.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "userinfo fetch")
	}
	return &token.Claims{
		Subject:           info.Subject,
		Email:             info.Email,
		Name:              info.Name,
		PreferredUsername: info.PreferredUsername,
		Raw:               info.Raw,
	}, nil
}
