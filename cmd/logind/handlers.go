package main

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-oidc-login/internal/errors"
	"github.com/jrsteele09/go-oidc-login/login"
	"github.com/jrsteele09/go-oidc-login/provider"
	"github.com/rs/zerolog/log"
)

// handlers is demo-only glue: all protocol behavior lives in the library
// packages.
type handlers struct {
	service *login.Service
}

func newRouter(service *login.Service, env string) http.Handler {
	h := &handlers{service: service}
	mw := []func(http.HandlerFunc) http.HandlerFunc{
		LoggingMiddleware(env),
		RecoverMiddleware,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/{provider}/login", ChainMiddleware(h.loginHandler, mw...))
	mux.HandleFunc("GET /auth/{provider}/callback", ChainMiddleware(h.callbackHandler, mw...))
	mux.HandleFunc("POST /auth/{provider}/refresh", ChainMiddleware(h.refreshHandler, mw...))
	return mux
}

func (h *handlers) loginHandler(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.service.Begin(r.PathValue("provider"), "", r.URL.Query().Get("prompt"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, challenge.URL, http.StatusFound)
}

func (h *handlers) callbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		log.Warn().Str("error", errCode).Str("description", query.Get("error_description")).Msg("provider returned an error")
		http.Error(w, errCode, http.StatusBadGateway)
		return
	}

	result, err := h.service.Complete(r.Context(), r.PathValue("provider"), query.Get("code"), query.Get("state"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"sessionID":    result.SessionID,
		"provider":     result.Provider,
		"subject":      result.Claims.Subject,
		"email":        result.Claims.Email,
		"expiresIn":    result.ExpiresIn,
		"refreshToken": result.RefreshToken,
	})
}

func (h *handlers) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), r.PathValue("provider"), request.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"expiresIn":    tokens.ExpiresIn,
	})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("writing response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var notSupported *provider.NotSupportedError
	var exchangeErr *provider.ExchangeError

	switch {
	case errors.As(err, &notSupported):
		http.Error(w, notSupported.Error(), http.StatusNotFound)
	case errors.Is(err, provider.ErrPKCEVerifierMissing):
		http.Error(w, "login expired, restart the flow", http.StatusBadRequest)
	case errors.As(err, &exchangeErr):
		http.Error(w, exchangeErr.Error(), http.StatusBadGateway)
	case errors.Is(err, errors.ErrUnsupported):
		http.Error(w, err.Error(), http.StatusMethodNotAllowed)
	default:
		log.Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
