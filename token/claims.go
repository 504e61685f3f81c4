package token

import (
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-oidc-login/internal/utils"
)

// Claims holds the payload of an ID token. Instances returned by
// Validator.Validate passed signature, issuer, audience and expiry checks;
// instances from DecodeUnverified carry no such guarantee. Raw keeps every
// claim available for provider-specific extraction.
type Claims struct {
	Subject           string
	Issuer            string
	Audience          []string
	ExpiresAt         int64
	IssuedAt          int64
	Email             string
	Name              string
	PreferredUsername string
	Raw               map[string]any
}

func newClaims(mapClaims jwtlib.MapClaims) *Claims {
	c := &Claims{Raw: map[string]any(mapClaims)}

	c.Subject, _ = mapClaims["sub"].(string)
	c.Issuer, _ = mapClaims["iss"].(string)

	switch aud := mapClaims["aud"].(type) {
	case string:
		c.Audience = []string{aud}
	case []any:
		c.Audience = utils.ToStringSlice(aud)
	}

	if exp, ok := mapClaims["exp"].(float64); ok {
		c.ExpiresAt = int64(exp)
	}
	if iat, ok := mapClaims["iat"].(float64); ok {
		c.IssuedAt = int64(iat)
	}

	c.Email, _ = mapClaims["email"].(string)
	c.Name, _ = mapClaims["name"].(string)
	c.PreferredUsername, _ = mapClaims["preferred_username"].(string)

	return c
}
