package provider

import (
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/go-oidc-login/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

var (
	// ErrPKCEVerifierMissing reports a code exchange attempted for a PKCE flow
	// whose verifier was never stored, already consumed or expired. The login
	// attempt cannot proceed and the user must restart the flow.
	ErrPKCEVerifierMissing = errors.New("pkce verifier missing for state")

	// ErrNoUserInfoEndpoint reports a userinfo request against a provider
	// configured without a userinfo endpoint. It matches
	// apperrors.ErrConfiguration under errors.Is.
	ErrNoUserInfoEndpoint = errors.Wrap(apperrors.ErrConfiguration, "provider has no userinfo endpoint")
)

// ExchangeError carries the OAuth2 error response returned by a provider's
// token endpoint.
type ExchangeError struct {
	Code        string
	Description string
}

func (e *ExchangeError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("token endpoint error %q", e.Code)
	}
	return fmt.Sprintf("token endpoint error %q: %s", e.Code, e.Description)
}

// asExchangeError converts x/oauth2 retrieve failures into ExchangeError,
// pulling error/error_description out of the provider's JSON body when present.
func asExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return err
	}
	code := retrieveErr.ErrorCode
	if code == "" {
		code = fmt.Sprintf("http_%d", retrieveErr.Response.StatusCode)
	}
	return &ExchangeError{Code: code, Description: retrieveErr.ErrorDescription}
}

// NotSupportedError reports a registry lookup for a provider name that has no
// registered factory.
type NotSupportedError struct {
	Name       string
	Registered []string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("provider %q not supported, registered: %s", e.Name, strings.Join(e.Registered, ", "))
}
