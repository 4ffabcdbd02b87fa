package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig builds the configuration in four layers:
// defaults from NewConfig, the embedded YAML (after ${VAR} expansion),
// environment variables named after the yaml tags (STATIONCAST_PIPELINE_INPUT_PATH, ...),
// and finally struct validation.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
	}

	cfg := NewConfig()

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Stationcast.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Stationcast.System.Logging.Level)
	return cfg, nil
}

// Validate checks the struct-level constraints of cfg.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return nil
}

// mergeConfig copies every non-zero value of source over dest.
func mergeConfig(dest, source *Config) {
	d, s := &dest.Stationcast, &source.Stationcast

	if s.System.Timezone != "" {
		d.System.Timezone = s.System.Timezone
	}
	if s.System.Logging.Level != "" {
		d.System.Logging.Level = s.System.Logging.Level
	}

	mergePipelineConfig(&d.Pipeline, &s.Pipeline)
	mergeTrainingConfig(&d.Training, &s.Training)

	if s.Retry.MaxAttempts != 0 {
		d.Retry.MaxAttempts = s.Retry.MaxAttempts
	}
	if s.Retry.InitialIntervalMillis != 0 {
		d.Retry.InitialIntervalMillis = s.Retry.InitialIntervalMillis
	}
	if len(s.Retry.RetryableExceptions) > 0 {
		d.Retry.RetryableExceptions = s.Retry.RetryableExceptions
	}

	if s.Metrics.Backend != "" {
		d.Metrics.Backend = s.Metrics.Backend
	}
	if s.Metrics.TextfilePath != "" {
		d.Metrics.TextfilePath = s.Metrics.TextfilePath
	}
	mergeOTLPConfig(&d.Metrics.OTLP, &s.Metrics.OTLP)

	if s.Tracing.Enabled {
		d.Tracing.Enabled = true
	}
	mergeOTLPConfig(&d.Tracing.OTLP, &s.Tracing.OTLP)

	if s.Infrastructure.RunRepositoryDBRef != "" {
		d.Infrastructure.RunRepositoryDBRef = s.Infrastructure.RunRepositoryDBRef
	}

	if s.AdapterConfigs != nil {
		if d.AdapterConfigs == nil {
			d.AdapterConfigs = make(map[string]interface{})
		}
		for key, value := range s.AdapterConfigs {
			d.AdapterConfigs[key] = value
		}
	}
}

func mergePipelineConfig(dest, source *PipelineConfig) {
	if source.JobName != "" {
		dest.JobName = source.JobName
	}
	if source.Input.StorageRef != "" {
		dest.Input.StorageRef = source.Input.StorageRef
	}
	if source.Input.Bucket != "" {
		dest.Input.Bucket = source.Input.Bucket
	}
	if source.Input.Path != "" {
		dest.Input.Path = source.Input.Path
	}
	if source.Input.Format != "" {
		dest.Input.Format = source.Input.Format
	}
	if source.Output.StorageRef != "" {
		dest.Output.StorageRef = source.Output.StorageRef
	}
	if source.Output.Bucket != "" {
		dest.Output.Bucket = source.Output.Bucket
	}
	if source.Output.Prefix != "" {
		dest.Output.Prefix = source.Output.Prefix
	}
	if source.Output.Compression != "" {
		dest.Output.Compression = strings.ToUpper(source.Output.Compression)
	}
}

func mergeTrainingConfig(dest, source *TrainingConfig) {
	if source.StationID != "" {
		dest.StationID = source.StationID
	}
	if source.TestSize != 0 {
		dest.TestSize = source.TestSize
	}
	if source.Seed != 0 {
		dest.Seed = source.Seed
	}
	if source.RidgeLambda != 0 {
		dest.RidgeLambda = source.RidgeLambda
	}
	if source.HistogramBins != 0 {
		dest.HistogramBins = source.HistogramBins
	}
	if source.ReportStorageRef != "" {
		dest.ReportStorageRef = source.ReportStorageRef
	}
	if source.ReportBucket != "" {
		dest.ReportBucket = source.ReportBucket
	}
	if source.ReportPath != "" {
		dest.ReportPath = source.ReportPath
	}
}

func mergeOTLPConfig(dest, source *OTLPConfig) {
	if source.Endpoint != "" {
		dest.Endpoint = source.Endpoint
	}
	if source.Protocol != "" {
		dest.Protocol = source.Protocol
	}
	if source.Insecure {
		dest.Insecure = true
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// The variable name is the upper-cased chain of yaml tags joined by "_".
// Map fields are left to the YAML source.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map, reflect.Slice, reflect.Interface:
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
