package config

const (
	EnvPrefix = "ENXOVAL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "ENXOVAL_APP_ENV"
	EnvPort         = "ENXOVAL_APP_PORT"
	EnvDBDSN        = "ENXOVAL_DB_DSN"
	EnvDBHost       = "ENXOVAL_DB_HOST"
	EnvDBUser       = "ENXOVAL_DB_USER"
	EnvDBName       = "ENXOVAL_DB_NAME"
	EnvRedisURL     = "ENXOVAL_REDIS_URL"
	EnvJWTSecret    = "ENXOVAL_JWT_SECRET"
	EnvJWTIssuer    = "ENXOVAL_JWT_ISSUER"
	EnvMPToken      = "ENXOVAL_MP_ACCESS_TOKEN"
	EnvCronSchedule = "ENXOVAL_CRON_SCHEDULE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
