package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-login/ephemeral"
	apperrors "github.com/jrsteele09/go-oidc-login/internal/errors"
	"github.com/jrsteele09/go-oidc-login/pkce"
	"github.com/jrsteele09/go-oidc-login/provider"
	"github.com/stretchr/testify/require"
)

func newTestConfig(usePKCE bool) provider.Config {
	return provider.Config{
		Name:                  "acme",
		ClientID:              "client-id-123",
		ClientSecret:          "client-secret",
		RedirectURI:           "https://app.example.com/callback",
		AuthorizationEndpoint: "https://idp.example.com/authorize",
		TokenEndpoint:         "https://idp.example.com/token",
		Scopes:                []string{"openid", "profile", "email"},
		UsePKCE:               usePKCE,
	}
}

func TestClient_BuildLoginRedirectURL(t *testing.T) {
	store := ephemeral.NewInMemoryStore()
	client, err := provider.NewClient(newTestConfig(true), store)
	require.NoError(t, err)

	redirectURL, state, err := client.BuildLoginRedirectURL("", "", nil)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), state)

	parsed, err := url.Parse(redirectURL)
	require.NoError(t, err)
	require.Equal(t, "https", parsed.Scheme)
	require.Equal(t, "idp.example.com", parsed.Host)
	require.Equal(t, "/authorize", parsed.Path)

	query := parsed.Query()
	require.Equal(t, "client-id-123", query.Get("client_id"))
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, "https://app.example.com/callback", query.Get("redirect_uri"))
	require.Equal(t, "query", query.Get("response_mode"))
	require.Equal(t, "openid profile email", query.Get("scope"))
	require.Equal(t, state, query.Get("state"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))

	// The challenge in the URL must belong to the verifier stored for state.
	verifier, ok := store.Pop("pkce:" + state)
	require.True(t, ok)
	require.Equal(t, pkce.Challenge(verifier), query.Get("code_challenge"))
}

func TestClient_BuildLoginRedirectURL_CallerParams(t *testing.T) {
	config := newTestConfig(false)
	config.Prompt = "login"
	config.ExtraAuthParams = map[string]string{"audience": "https://api.example.com", "access_type": "offline"}

	client, err := provider.NewClient(config, nil)
	require.NoError(t, err)

	t.Run("caller state and prompt override", func(t *testing.T) {
		redirectURL, state, err := client.BuildLoginRedirectURL("my-state", "consent", map[string]string{"access_type": "online"})
		require.NoError(t, err)
		require.Equal(t, "my-state", state)

		parsed, err := url.Parse(redirectURL)
		require.NoError(t, err)
		query := parsed.Query()
		require.Equal(t, "my-state", query.Get("state"))
		require.Equal(t, "consent", query.Get("prompt"))
		require.Equal(t, "online", query.Get("access_type"))
		require.Equal(t, "https://api.example.com", query.Get("audience"))
		require.Empty(t, query.Get("code_challenge"))
	})

	t.Run("configured prompt is default", func(t *testing.T) {
		redirectURL, _, err := client.BuildLoginRedirectURL("", "", nil)
		require.NoError(t, err)

		parsed, err := url.Parse(redirectURL)
		require.NoError(t, err)
		require.Equal(t, "login", parsed.Query().Get("prompt"))
	})
}

func TestClient_ExchangeCode(t *testing.T) {
	store := ephemeral.NewInMemoryStore()

	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-abc",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-def",
			"id_token":      "id-ghi",
		})
	}))
	defer srv.Close()

	config := newTestConfig(true)
	config.TokenEndpoint = srv.URL
	client, err := provider.NewClient(config, store)
	require.NoError(t, err)

	require.NoError(t, store.Set("pkce:state-1", "verifier-1", time.Minute))

	response, err := client.ExchangeCode(context.Background(), "auth-code-1", "state-1")
	require.NoError(t, err)

	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "auth-code-1", form.Get("code"))
	require.Equal(t, "https://app.example.com/callback", form.Get("redirect_uri"))
	require.Equal(t, "client-id-123", form.Get("client_id"))
	require.Equal(t, "client-secret", form.Get("client_secret"))
	require.Equal(t, "verifier-1", form.Get("code_verifier"))
	require.Equal(t, "openid profile email", form.Get("scope"))

	require.Equal(t, "access-abc", response.AccessToken)
	require.Equal(t, "Bearer", response.TokenType)
	require.Equal(t, int64(3600), response.ExpiresIn)
	require.Equal(t, "refresh-def", response.RefreshToken)
	require.Equal(t, "id-ghi", response.IDToken)

	_, ok := store.Get("pkce:state-1")
	require.False(t, ok, "verifier must be consumed by the exchange")
}

func TestClient_ExchangeCode_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer srv.Close()

	config := newTestConfig(false)
	config.TokenEndpoint = srv.URL
	client, err := provider.NewClient(config, nil)
	require.NoError(t, err)

	_, err = client.ExchangeCode(context.Background(), "stale-code", "state-1")
	require.Error(t, err)

	var exchangeErr *provider.ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	require.Equal(t, "invalid_grant", exchangeErr.Code)
	require.Equal(t, "code expired", exchangeErr.Description)
}

func TestClient_ExchangeCode_MissingVerifierIsFatal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	config := newTestConfig(true)
	config.TokenEndpoint = srv.URL
	client, err := provider.NewClient(config, ephemeral.NewInMemoryStore())
	require.NoError(t, err)

	_, err = client.ExchangeCode(context.Background(), "auth-code-1", "unknown-state")
	require.Error(t, err)
	require.ErrorIs(t, err, provider.ErrPKCEVerifierMissing)
	require.Zero(t, calls, "exchange must not reach the provider without a verifier")
}

func TestClient_UserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access-abc", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":12345,"login":"octocat","name":"Octo Cat","email":"octo@example.com"}`))
	}))
	defer srv.Close()

	config := newTestConfig(false)
	config.UserinfoEndpoint = srv.URL
	client, err := provider.NewClient(config, nil)
	require.NoError(t, err)

	info, err := client.UserInfo(context.Background(), "access-abc")
	require.NoError(t, err)
	require.Equal(t, "12345", info.Subject)
	require.Equal(t, "octocat", info.PreferredUsername)
	require.Equal(t, "Octo Cat", info.Name)
	require.Equal(t, "octo@example.com", info.Email)
	require.Contains(t, info.Raw, "login")
}

func TestClient_UserInfo_NoEndpoint(t *testing.T) {
	client, err := provider.NewClient(newTestConfig(false), nil)
	require.NoError(t, err)

	_, err = client.UserInfo(context.Background(), "access-abc")
	require.Error(t, err)
	require.ErrorIs(t, err, provider.ErrNoUserInfoEndpoint)
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestNewClient_Validation(t *testing.T) {
	t.Run("missing client ID", func(t *testing.T) {
		config := newTestConfig(false)
		config.ClientID = ""
		_, err := provider.NewClient(config, nil)
		require.Error(t, err)
		require.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("missing token endpoint", func(t *testing.T) {
		config := newTestConfig(false)
		config.TokenEndpoint = ""
		_, err := provider.NewClient(config, nil)
		require.Error(t, err)
		require.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("pkce without store", func(t *testing.T) {
		_, err := provider.NewClient(newTestConfig(true), nil)
		require.Error(t, err)
	})
}

func newOIDCTestConfig(tokenURL string) provider.Config {
	config := newTestConfig(false)
	config.TokenEndpoint = tokenURL
	config.JWKSURI = "https://idp.example.com/jwks"
	config.Issuer = "https://idp.example.com"
	return config
}

func TestOIDCClient_Refresh(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-new","token_type":"Bearer","expires_in":1800}`))
	}))
	defer srv.Close()

	client, err := provider.NewOIDCClient(newOIDCTestConfig(srv.URL), nil)
	require.NoError(t, err)

	response, err := client.Refresh(context.Background(), "refresh-old")
	require.NoError(t, err)

	require.Equal(t, "refresh_token", form.Get("grant_type"))
	require.Equal(t, "refresh-old", form.Get("refresh_token"))
	require.Equal(t, "access-new", response.AccessToken)
	require.Equal(t, int64(1800), response.ExpiresIn)
	require.Equal(t, "refresh-old", response.RefreshToken, "kept when the provider omits a new one")
}

func TestOIDCClient_PasswordGrant(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-ropc","token_type":"Bearer","expires_in":900}`))
	}))
	defer srv.Close()

	client, err := provider.NewOIDCClient(newOIDCTestConfig(srv.URL), nil)
	require.NoError(t, err)

	response, err := client.PasswordGrant(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	require.Equal(t, "password", form.Get("grant_type"))
	require.Equal(t, "alice", form.Get("username"))
	require.Equal(t, "s3cret", form.Get("password"))
	require.Equal(t, "access-ropc", response.AccessToken)
}

func TestNewOIDCClient_RequiresIssuerAndJWKS(t *testing.T) {
	config := newTestConfig(false)
	config.Issuer = "https://idp.example.com"
	_, err := provider.NewOIDCClient(config, nil)
	require.Error(t, err)
}
