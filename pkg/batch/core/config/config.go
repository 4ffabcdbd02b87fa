package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Input formats understood by the table readers.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// Metrics backends.
const (
	MetricsBackendPrometheus = "prometheus"
	MetricsBackendOTel       = "otel"
	MetricsBackendNone       = "none"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG", "TRACE").
	Level string `yaml:"level" validate:"required"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is used only for log timestamps; feature derivation always works in UTC.
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// InputConfig locates the raw station event table.
type InputConfig struct {
	// StorageRef names a storage connection under adapter.storage.
	// When empty, Path is read directly from the local file system.
	StorageRef string `yaml:"storage_ref"`
	Bucket     string `yaml:"bucket"`
	Path       string `yaml:"path" validate:"required"`
	Format     string `yaml:"format" validate:"oneof=parquet csv"`
}

// OutputConfig controls where the feature table is written.
type OutputConfig struct {
	// StorageRef names a storage connection under adapter.storage. Writing is skipped when empty.
	StorageRef  string `yaml:"storage_ref"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Compression string `yaml:"compression" validate:"oneof=SNAPPY GZIP NONE"`
}

// PipelineConfig holds the feature pipeline settings.
type PipelineConfig struct {
	JobName string       `yaml:"job_name" validate:"required"`
	Input   InputConfig  `yaml:"input"`
	Output  OutputConfig `yaml:"output"`
}

// TrainingConfig holds the regression training settings.
type TrainingConfig struct {
	StationID     string  `yaml:"station_id" validate:"required"`
	TestSize      float64 `yaml:"test_size" validate:"gt=0,lt=1"`
	Seed          int64   `yaml:"seed"`
	RidgeLambda   float64 `yaml:"ridge_lambda" validate:"gte=0"`
	HistogramBins int     `yaml:"histogram_bins" validate:"gte=1"`
	// ReportStorageRef names the storage connection receiving report.json. Upload is skipped when empty.
	ReportStorageRef string `yaml:"report_storage_ref"`
	ReportBucket     string `yaml:"report_bucket"`
	ReportPath       string `yaml:"report_path"`
}

// RetryConfig controls how storage uploads are retried.
type RetryConfig struct {
	// MaxAttempts counts the first attempt; 1 disables retrying.
	MaxAttempts           int `yaml:"max_attempts" validate:"gte=1"`
	InitialIntervalMillis int `yaml:"initial_interval_millis" validate:"gte=0"`
	// RetryableExceptions are extra error names or message fragments treated as retryable.
	RetryableExceptions []string `yaml:"retryable_exceptions"`
}

// OTLPConfig is the exporter endpoint shared by metrics and tracing.
type OTLPConfig struct {
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure bool   `yaml:"insecure"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend string `yaml:"backend" validate:"oneof=prometheus otel none"`
	// TextfilePath is where the Prometheus registry is written at shutdown, node_exporter textfile style.
	TextfilePath string     `yaml:"textfile_path"`
	OTLP         OTLPConfig `yaml:"otlp"`
}

// TracingConfig enables OpenTelemetry tracing of job and step executions.
type TracingConfig struct {
	Enabled bool       `yaml:"enabled"`
	OTLP    OTLPConfig `yaml:"otlp"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// RunRepositoryDBRef is the name of the database connection that stores run history.
	// When empty, run history is kept in memory.
	RunRepositoryDBRef string `yaml:"run_repository_db_ref"`
}

// StationcastConfig holds all configuration under the "stationcast" top-level key.
type StationcastConfig struct {
	System         SystemConfig         `yaml:"system"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	Training       TrainingConfig       `yaml:"training"`
	Retry          RetryConfig          `yaml:"retry"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// AdapterConfigs holds the raw "adapter" tree (adapter.storage.<name>, adapter.database.<name>).
	// Sections are decoded on demand with DecodeAdapterConfig.
	AdapterConfigs map[string]interface{} `yaml:"adapter"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Stationcast StationcastConfig `yaml:"stationcast"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Stationcast: StationcastConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Pipeline: PipelineConfig{
				JobName: "stationcastJob",
				Input: InputConfig{
					Path:   "data/station_events.parquet",
					Format: FormatParquet,
				},
				Output: OutputConfig{
					Prefix:      "features",
					Compression: "SNAPPY",
				},
			},
			Training: TrainingConfig{
				StationID:     "220",
				TestSize:      0.2,
				Seed:          42,
				RidgeLambda:   1.0,
				HistogramBins: 30,
				ReportPath:    "reports/report.json",
			},
			Retry: RetryConfig{
				MaxAttempts:           3,
				InitialIntervalMillis: 500,
			},
			Metrics: MetricsConfig{
				Backend: MetricsBackendNone,
				OTLP:    OTLPConfig{Protocol: "http"},
			},
			Tracing: TracingConfig{
				OTLP: OTLPConfig{Protocol: "http"},
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}
