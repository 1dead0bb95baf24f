package config

type Config interface {
	EnvConfig
	CallbackConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetDatabasePath() string
}

type CallbackConfig interface {
	GetCallbackBaseURL() string
	GetProviderCode() string
	GetPrivateKeyPath() string
}

type mainConfig struct {
	EnvVars
	Callbacks
}

func New() Config {
	return mainConfig{}
}
