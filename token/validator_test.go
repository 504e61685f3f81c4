package token_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-oidc-login/jwks"
	"github.com/jrsteele09/go-oidc-login/token"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://issuer.example.com"
	testAudience = "client-id-123"
	testKid      = "kid1"
)

type validatorFixture struct {
	key       *rsa.PrivateKey
	validator *token.Validator
	srv       *httptest.Server
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	cache, err := jwks.NewCache(srv.URL)
	require.NoError(t, err)

	validator, err := token.NewValidator(cache, testIssuer, testAudience)
	require.NoError(t, err)

	return &validatorFixture{key: key, validator: validator, srv: srv}
}

func (f *validatorFixture) sign(t *testing.T, kid string, claims jwtlib.MapClaims) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	raw, err := tok.SignedString(f.key)
	require.NoError(t, err)
	return raw
}

func validClaims() jwtlib.MapClaims {
	now := time.Now()
	return jwtlib.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   "user-42",
		"email": "user@example.com",
		"name":  "Test User",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func TestValidator_AcceptsWellFormedToken(t *testing.T) {
	f := newValidatorFixture(t)

	raw := f.sign(t, testKid, validClaims())
	claims, err := f.validator.Validate(context.Background(), raw)
	require.NoError(t, err)

	require.Equal(t, "user-42", claims.Subject)
	require.Equal(t, testIssuer, claims.Issuer)
	require.Equal(t, []string{testAudience}, claims.Audience)
	require.Equal(t, "user@example.com", claims.Email)
	require.Equal(t, "Test User", claims.Name)
	require.Greater(t, claims.ExpiresAt, time.Now().Unix())
	require.Contains(t, claims.Raw, "sub")
}

func TestValidator_RejectsExpiredToken(t *testing.T) {
	f := newValidatorFixture(t)

	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	raw := f.sign(t, testKid, claims)

	_, err := f.validator.Validate(context.Background(), raw)
	require.Error(t, err)
	var validationErr *token.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestValidator_RejectsWrongAudience(t *testing.T) {
	f := newValidatorFixture(t)

	claims := validClaims()
	claims["aud"] = "some-other-client"
	raw := f.sign(t, testKid, claims)

	_, err := f.validator.Validate(context.Background(), raw)
	require.Error(t, err)
	var validationErr *token.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestValidator_RejectsWrongIssuer(t *testing.T) {
	f := newValidatorFixture(t)

	claims := validClaims()
	claims["iss"] = "https://evil.example.com"
	raw := f.sign(t, testKid, claims)

	_, err := f.validator.Validate(context.Background(), raw)
	require.Error(t, err)
	var validationErr *token.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestValidator_RejectsTamperedSignature(t *testing.T) {
	f := newValidatorFixture(t)

	raw := f.sign(t, testKid, validClaims())
	tampered := raw[:len(raw)-2]
	if strings.HasSuffix(raw, "AA") {
		tampered += "BB"
	} else {
		tampered += "AA"
	}

	_, err := f.validator.Validate(context.Background(), tampered)
	require.Error(t, err)
	var validationErr *token.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestValidator_RejectsMissingKid(t *testing.T) {
	f := newValidatorFixture(t)

	raw := f.sign(t, "", validClaims())
	_, err := f.validator.Validate(context.Background(), raw)
	require.Error(t, err)
	require.ErrorIs(t, err, token.ErrMalformedToken)
}

func TestValidator_UnknownKidSurfacesKeyNotFound(t *testing.T) {
	f := newValidatorFixture(t)

	raw := f.sign(t, "rotated-away", validClaims())
	_, err := f.validator.Validate(context.Background(), raw)
	require.Error(t, err)
	require.ErrorIs(t, err, jwks.ErrKeyNotFound)
}

func TestValidator_RejectsGarbage(t *testing.T) {
	f := newValidatorFixture(t)

	for _, raw := range []string{"", "   ", "not-a-token", "a.b"} {
		_, err := f.validator.Validate(context.Background(), raw)
		require.Error(t, err)
		require.ErrorIs(t, err, token.ErrMalformedToken)
	}
}

func TestValidator_ClockSkewTolerance(t *testing.T) {
	f := newValidatorFixture(t)

	cache, err := jwks.NewCache(f.srv.URL)
	require.NoError(t, err)
	skewed, err := token.NewValidator(cache, testIssuer, testAudience, token.WithClockSkew(2*time.Minute))
	require.NoError(t, err)

	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Minute).Unix() // expired, but within leeway
	raw := f.sign(t, testKid, claims)

	_, err = f.validator.Validate(context.Background(), raw)
	require.Error(t, err, "zero-skew validator must reject")

	_, err = skewed.Validate(context.Background(), raw)
	require.NoError(t, err, "skewed validator must accept within leeway")
}

func TestDecodeUnverified(t *testing.T) {
	f := newValidatorFixture(t)

	// A token signed for a different audience still decodes: no checks run.
	claims := validClaims()
	claims["aud"] = "someone-else"
	raw := f.sign(t, testKid, claims)

	decoded, err := token.DecodeUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "user-42", decoded.Subject)
	require.Equal(t, []string{"someone-else"}, decoded.Audience)

	_, err = token.DecodeUnverified("garbage")
	require.Error(t, err)
	require.ErrorIs(t, err, token.ErrMalformedToken)
}
