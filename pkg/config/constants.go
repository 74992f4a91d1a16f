package config

// EnvPrefix scopes every environment variable consumed by the platform.
const EnvPrefix = "TIJARA"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "TIJARA_APP_ENV"
	EnvPort   = "TIJARA_APP_PORT"

	EnvDBDSN  = "TIJARA_DB_DSN"
	EnvDBHost = "TIJARA_DB_HOST"
	EnvDBUser = "TIJARA_DB_USER"
	EnvDBName = "TIJARA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
