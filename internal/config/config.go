package config

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	SessionConfig
	StorageConfig
	OAuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Session
	Storage
	OAuth
}

func New() Config {
	return mainConfig{}
}

// Load reads the given dotenv files (".env" when none are given) into the
// process environment and returns the env backed Config. Missing files are
// not an error, values already present in the environment win.
func Load(files ...string) Config {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Err(err).Strs("files", files).Msg("no dotenv file loaded")
	}
	return New()
}
