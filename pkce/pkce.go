// Package pkce implements Proof Key for Code Exchange (RFC 7636): the
// verifier/challenge pair generation and the state-keyed, one-time storage
// that binds an authorization request to its token exchange.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
)

const (
	// verifierByteLength yields an 86-character base64url verifier, inside
	// the 43..128 window RFC 7636 allows.
	verifierByteLength = 64
	stateByteLength    = 16
)

// MethodS256 is the only challenge method supported. The plain method would
// disclose the verifier to the authorization server up front.
const MethodS256 = "S256"

// GeneratePair returns a new code verifier and its S256 challenge. The
// authorization server only ever sees the challenge; the verifier is
// disclosed solely in the token-exchange request over a confidential channel.
func GeneratePair() (verifier, challenge string, err error) {
	b := make([]byte, verifierByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", errors.Wrap(err, "[GeneratePair] rand.Read")
	}
	verifier = base64.RawURLEncoding.EncodeToString(b)
	return verifier, Challenge(verifier), nil
}

// Challenge computes the S256 code challenge for a verifier:
// base64url-no-pad(SHA-256(verifier)).
func Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState creates the random state parameter used for CSRF protection:
// 16 random bytes, hex encoded (32 characters).
func GenerateState() (string, error) {
	b := make([]byte, stateByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[GenerateState] rand.Read")
	}
	return hex.EncodeToString(b), nil
}
