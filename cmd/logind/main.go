package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-oidc-login/ephemeral"
	"github.com/jrsteele09/go-oidc-login/internal/config"
	"github.com/jrsteele09/go-oidc-login/jwks"
	"github.com/jrsteele09/go-oidc-login/login"
	"github.com/jrsteele09/go-oidc-login/provider"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	service, err := newLoginService(c)
	if err != nil {
		return fmt.Errorf("newLoginService: %w", err)
	}

	server := &http.Server{Addr: c.GetPort(), Handler: newRouter(service, c.GetEnv())}
	go listenAndServe(server)
	waitForStopSignal()
	returnError = shutdown(server)
	return returnError
}

func newLoginService(c config.Config) (*login.Service, error) {
	store, err := newStore(c)
	if err != nil {
		return nil, err
	}

	registry := provider.NewRegistry(provider.WithDefaultProvider(c.GetDefaultProvider()))
	for _, providerConfig := range c.ProviderConfigs() {
		providerConfig := providerConfig
		var factory provider.Factory
		if providerConfig.JWKSURI != "" && providerConfig.Issuer != "" {
			// One key cache per provider, shared by every resolved client,
			// so the JWKS is fetched once per TTL rather than per request.
			cache, err := jwks.NewCache(providerConfig.JWKSURI)
			if err != nil {
				return nil, fmt.Errorf("jwks.NewCache for %s: %w", providerConfig.Name, err)
			}
			factory = func() (provider.Authenticator, error) {
				return provider.NewOIDCClient(providerConfig, store, provider.WithKeyResolver(cache))
			}
		} else {
			factory = func() (provider.Authenticator, error) {
				return provider.NewClient(providerConfig, store)
			}
		}
		registry.Register(providerConfig.Name, factory)
		log.Info().Str("provider", providerConfig.Name).Msg("provider registered")
	}

	return login.NewService(registry, login.WithLogger(log.Logger))
}

// newStore selects the PKCE verifier store: Redis when configured, otherwise
// in-memory (single-process deployments only).
func newStore(c config.Config) (ephemeral.Store, error) {
	addr := c.GetRedisAddr()
	if addr == "" {
		log.Info().Msg("using in-memory verifier store")
		return ephemeral.NewInMemoryStore(), nil
	}
	log.Info().Str("addr", addr).Msg("using redis verifier store")
	client := redis.NewClient(&redis.Options{Addr: addr})
	return ephemeral.NewRedisStore(client)
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
