package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar            = "PORT"
	appNameVar            = "APP_NAME"
	baseURLVar            = "BASE_URL"
	redisAddrVar          = "REDIS_ADDR"
	defaultProviderEnvVar = "DEFAULT_PROVIDER"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go OIDC Login")
}

// GetBaseURL returns the externally visible base URL of this service, used to
// build provider redirect URIs (e.g. "https://login.example.com").
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetRedisAddr returns the Redis address for the shared PKCE verifier store.
// Empty selects the in-memory store.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func (EnvVars) GetDefaultProvider() string {
	return GetEnv(defaultProviderEnvVar, "google")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
