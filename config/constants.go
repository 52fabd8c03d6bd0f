package constants

// Identity
const (
	SERVICE_NAME        = "contmon"
	SERVICE_DESCRIPTION = "contmon container resource collector"
	INSTRUMENTATION     = "contmon.io/collector"
)

// Container runtime
const (
	DEFAULT_DOCKER_HOST         = "unix:///var/run/docker.sock"
	DEFAULT_DOCKER_PING_TIMEOUT = 5  // seconds
	DEFAULT_CONNECT_MAX_ELAPSED = 30 // seconds
	DEFAULT_COLLECTION_INTERVAL = 15 // seconds
	DEFAULT_FETCH_TIMEOUT       = 0  // seconds, 0 disables the per-fetch deadline
	DEFAULT_MAX_CONCURRENCY     = 0  // 0 means one goroutine per running container
	DEFAULT_EXPORT_INTERVAL     = 10 // seconds
	DEFAULT_LOG_MAX_AGE         = 7  // days
	DEFAULT_LOG_ROTATION_TIME   = 24 // hours
)

// Telemetry
const (
	EXPORTER_OTLP_HTTP = "otlp-http"
	EXPORTER_OTLP_GRPC = "otlp-grpc"
	EXPORTER_NONE      = "none"

	DEFAULT_EXPORTER      = EXPORTER_OTLP_HTTP
	DEFAULT_OTLP_ENDPOINT = "localhost:4318"
	DEFAULT_LISTEN_ADDR   = ""
)

// Logging
const (
	DEFAULT_LOG_LEVEL  = "info"
	DEFAULT_LOG_FORMAT = "console"
)

// File paths
const (
	CONFIG_DIR_NAME     = "/.contmon"
	CONFIG_FILE_NAME    = "config"
	ENV_PREFIX          = "CONTMON"
	DEFAULT_STATUS_FILE = "/tmp/contmon_status.cbor"
	PID_FILE_NAME       = "contmon.pid"
)
