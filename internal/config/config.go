package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	constants "contmon/config"
	"contmon/internal/filter"
)

var valid = validator.New()

// Config represents the application configuration
type Config struct {
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Filters   filter.Spec     `mapstructure:"filters" yaml:"filters"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Docker    DockerConfig    `mapstructure:"docker" yaml:"docker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// CollectorConfig controls the cycle loop
type CollectorConfig struct {
	Interval       time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout" validate:"gte=0"`
	MaxConcurrency int           `mapstructure:"max_concurrency" yaml:"max_concurrency" validate:"gte=0"`
	StatusFile     string        `mapstructure:"status_file" yaml:"status_file"`
	Lock           bool          `mapstructure:"lock" yaml:"lock"`
}

// MetricsConfig gates emission of each metric family
type MetricsConfig struct {
	EnableCPU     bool `mapstructure:"enable_cpu" yaml:"enable_cpu"`
	EnableMemory  bool `mapstructure:"enable_memory" yaml:"enable_memory"`
	EnableNetwork bool `mapstructure:"enable_network" yaml:"enable_network"`
	EnableDisk    bool `mapstructure:"enable_disk" yaml:"enable_disk"`
}

// DockerConfig points at the container runtime
type DockerConfig struct {
	Host              string        `mapstructure:"host" yaml:"host" validate:"required"`
	APIVersion        string        `mapstructure:"api_version" yaml:"api_version"`
	PingTimeout       time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout" validate:"gt=0"`
	ConnectMaxElapsed time.Duration `mapstructure:"connect_max_elapsed" yaml:"connect_max_elapsed" validate:"gte=0"`
}

// TelemetryConfig configures the OTLP exporter and the self telemetry endpoint
type TelemetryConfig struct {
	ServiceName    string            `mapstructure:"service_name" yaml:"service_name" validate:"required"`
	Exporter       string            `mapstructure:"exporter" yaml:"exporter" validate:"oneof=otlp-http otlp-grpc none"`
	Endpoint       string            `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure       bool              `mapstructure:"insecure" yaml:"insecure"`
	Headers        map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	ExportInterval time.Duration     `mapstructure:"export_interval" yaml:"export_interval" validate:"gt=0"`
	ListenAddr     string            `mapstructure:"listen_addr" yaml:"listen_addr" validate:"omitempty,hostname_port"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level        string        `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format       string        `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
	Path         string        `mapstructure:"path" yaml:"path"`
	MaxAge       time.Duration `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
	RotationTime time.Duration `mapstructure:"rotation_time" yaml:"rotation_time" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Collector: CollectorConfig{
			Interval:       constants.DEFAULT_COLLECTION_INTERVAL * time.Second,
			FetchTimeout:   constants.DEFAULT_FETCH_TIMEOUT * time.Second,
			MaxConcurrency: constants.DEFAULT_MAX_CONCURRENCY,
			StatusFile:     constants.DEFAULT_STATUS_FILE,
			Lock:           true,
		},
		Filters: filter.Spec{},
		Metrics: MetricsConfig{
			EnableCPU:     true,
			EnableMemory:  true,
			EnableNetwork: true,
			EnableDisk:    true,
		},
		Docker: DockerConfig{
			Host:              constants.DEFAULT_DOCKER_HOST,
			PingTimeout:       constants.DEFAULT_DOCKER_PING_TIMEOUT * time.Second,
			ConnectMaxElapsed: constants.DEFAULT_CONNECT_MAX_ELAPSED * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    constants.SERVICE_NAME,
			Exporter:       constants.DEFAULT_EXPORTER,
			Endpoint:       constants.DEFAULT_OTLP_ENDPOINT,
			ExportInterval: constants.DEFAULT_EXPORT_INTERVAL * time.Second,
			ListenAddr:     constants.DEFAULT_LISTEN_ADDR,
		},
		Log: LogConfig{
			Level:        constants.DEFAULT_LOG_LEVEL,
			Format:       constants.DEFAULT_LOG_FORMAT,
			MaxAge:       constants.DEFAULT_LOG_MAX_AGE * 24 * time.Hour,
			RotationTime: constants.DEFAULT_LOG_ROTATION_TIME * time.Hour,
		},
	}
}

// LoadConfig loads configuration from file and environment. An empty path
// searches $HOME/.contmon and the working directory; a missing file there is
// not an error. Environment variables use the CONTMON_ prefix, e.g.
// CONTMON_COLLECTOR_INTERVAL=30s or CONTMON_FILTERS_NAME_PATTERNS=web*,api*.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(constants.CONFIG_FILE_NAME)
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + constants.CONFIG_DIR_NAME)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(constants.ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("collector.interval", d.Collector.Interval)
	v.SetDefault("collector.fetch_timeout", d.Collector.FetchTimeout)
	v.SetDefault("collector.max_concurrency", d.Collector.MaxConcurrency)
	v.SetDefault("collector.status_file", d.Collector.StatusFile)
	v.SetDefault("collector.lock", d.Collector.Lock)

	v.SetDefault("filters.ids", []string{})
	v.SetDefault("filters.name_patterns", []string{})
	v.SetDefault("filters.image_patterns", []string{})

	v.SetDefault("metrics.enable_cpu", d.Metrics.EnableCPU)
	v.SetDefault("metrics.enable_memory", d.Metrics.EnableMemory)
	v.SetDefault("metrics.enable_network", d.Metrics.EnableNetwork)
	v.SetDefault("metrics.enable_disk", d.Metrics.EnableDisk)

	v.SetDefault("docker.host", d.Docker.Host)
	v.SetDefault("docker.api_version", d.Docker.APIVersion)
	v.SetDefault("docker.ping_timeout", d.Docker.PingTimeout)
	v.SetDefault("docker.connect_max_elapsed", d.Docker.ConnectMaxElapsed)

	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.exporter", d.Telemetry.Exporter)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.export_interval", d.Telemetry.ExportInterval)
	v.SetDefault("telemetry.listen_addr", d.Telemetry.ListenAddr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.rotation_time", d.Log.RotationTime)
}

// Validate checks field tags and cross-field rules.
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	if c.Telemetry.Exporter != constants.EXPORTER_NONE && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required for exporter %s", c.Telemetry.Exporter)
	}
	if c.Collector.FetchTimeout > 0 && c.Collector.FetchTimeout > c.Collector.Interval {
		return fmt.Errorf("collector.fetch_timeout (%s) must not exceed collector.interval (%s)",
			c.Collector.FetchTimeout, c.Collector.Interval)
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
