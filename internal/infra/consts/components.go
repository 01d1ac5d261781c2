package consts

// Infra component names. Business components live in internal/consts.
const (
	COMPONENT_LOGGING      = "logging"
	COMPONENT_GORM         = "gorm"
	COMPONENT_REDIS        = "redis"
	COMPONENT_HTTP_CLIENTS = "http_clients"
	COMPONENT_HTTP_SERVER  = "http_server"
	COMPONENT_PROMETHEUS   = "prometheus"
	COMPONENT_TELEMETRY    = "telemetry"
)

const (
	ENV_PRODUCTION  = "production"
	ENV_DEVELOPMENT = "development"
	ENV_TEST        = "test"

	DEFAULT_CONFIG_PATH = "config/config.yaml"
	// DEFAULT_DATASOURCE receives the NORNS_DSN override.
	DEFAULT_DATASOURCE = "main"

	KEY_TraceID = "trace_id"

	// Environment overrides honoured by the config loader.
	ENV_KEY_ENV = "NORNS_ENV"
	ENV_KEY_DSN = "NORNS_DSN"
)
