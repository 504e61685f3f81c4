package config

import "github.com/jrsteele09/go-oidc-login/provider"

type Config interface {
	EnvConfig
	ProviderConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetRedisAddr() string
	GetDefaultProvider() string
	GetEnv() string
}

type ProviderConfig interface {
	ProviderConfigs() []provider.Config
}

type mainConfig struct {
	EnvVars
	Providers
}

func New() Config {
	return mainConfig{}
}
