// Package token validates OIDC ID tokens against a provider's JWKS:
// signature (RS256 only), issuer, audience and expiry.
package token

import (
	"context"
	"crypto/rsa"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedToken reports a token whose header or payload cannot be
	// parsed, including a header without a kid.
	ErrMalformedToken = errors.New("malformed token")

	errMissingKeyID = errors.New("missing 'kid' in token header")
)

// ValidationError reports a token that failed signature, issuer, audience or
// expiry checks. The underlying cause is available via Unwrap.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "token validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// KeyResolver resolves a signing key by kid; *jwks.Cache satisfies it.
type KeyResolver interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Validator verifies ID tokens for a single issuer/audience pair.
type Validator struct {
	keys      KeyResolver
	issuer    string
	audience  string
	clockSkew time.Duration
	nowTime   func() time.Time // nowTime function (injectable for testing)
}

// ValidatorOption defines a function type to modify the Validator instance.
type ValidatorOption func(*Validator)

// WithClockSkew sets the leeway applied to temporal claims (default 0).
func WithClockSkew(skew time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.clockSkew = skew
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.nowTime = nowFunc
	}
}

// NewValidator creates a Validator for the expected issuer and audience.
func NewValidator(keys KeyResolver, issuer, audience string, options ...ValidatorOption) (*Validator, error) {
	if keys == nil {
		return nil, errors.New("[NewValidator] key resolver is required")
	}
	if issuer == "" {
		return nil, errors.New("[NewValidator] issuer is required")
	}
	if audience == "" {
		return nil, errors.New("[NewValidator] audience is required")
	}

	v := &Validator{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Validate parses and verifies raw, returning its claims. The signing key is
// resolved from the unverified header's kid; key-resolution failures
// (unknown kid, JWKS fetch errors) propagate untouched, every verification
// failure is wrapped in a ValidationError.
func (v *Validator) Validate(ctx context.Context, raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.Wrap(ErrMalformedToken, "empty token")
	}

	// Header-only parse to extract the kid; nothing from this pass is
	// trusted beyond the key lookup.
	unverified, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(ErrMalformedToken, err.Error())
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, errors.Wrap(ErrMalformedToken, errMissingKeyID.Error())
	}

	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		return nil, err
	}

	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{"RS256"}),
		jwtlib.WithIssuer(v.issuer),
		jwtlib.WithAudience(v.audience),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(v.clockSkew),
		jwtlib.WithTimeFunc(v.nowTime),
	)

	parsedToken, err := parser.ParseWithClaims(raw, jwtlib.MapClaims{}, func(*jwtlib.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	mapClaims, ok := parsedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, &ValidationError{Err: errors.New("error extracting claims from token")}
	}
	return newClaims(mapClaims), nil
}

// DecodeUnverified returns the token's claims without any cryptographic
// check. The only legitimate caller is one that received the token directly
// from the token endpoint over TLS, where the channel itself is the trust
// anchor. It is not a substitute for Validate.
func DecodeUnverified(raw string) (*Claims, error) {
	unverified, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(ErrMalformedToken, err.Error())
	}

	mapClaims, ok := unverified.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrMalformedToken, "error extracting claims")
	}
	return newClaims(mapClaims), nil
}
