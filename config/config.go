// Package config loads process configuration for the strata command from
// strata.yaml and STRATA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/syssam/strata/sdk"
	"github.com/syssam/strata/updater"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of environment variables overriding the file.
const EnvPrefix = "STRATA"

// Config is the process configuration.
type Config struct {
	Schema  SchemaConfig  `mapstructure:"schema"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SchemaConfig selects where schema snapshots come from.
type SchemaConfig struct {
	BaseURL                string        `mapstructure:"base_url" validate:"omitempty,url"`
	Directory              string        `mapstructure:"directory"`
	Mode                   string        `mapstructure:"mode" validate:"oneof=stale poll static"`
	TTL                    time.Duration `mapstructure:"ttl" validate:"gt=0"`
	Watch                  bool          `mapstructure:"watch"`
	IncludeTestDefinitions bool          `mapstructure:"include_test_definitions"`
}

// ServerConfig configures the publishing server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Enabled true"`
}

// FlagKeys maps command-line flag names to configuration keys. Flags that
// are set take precedence over the environment and the file.
var FlagKeys = map[string]string{
	"dir":       "schema.directory",
	"url":       "schema.base_url",
	"mode":      "schema.mode",
	"ttl":       "schema.ttl",
	"watch":     "schema.watch",
	"addr":      "server.addr",
	"log-level": "log.level",
}

// Load reads the configuration. When path is empty, strata.yaml is looked up
// in the working directory; a missing file is not an error. Flags from
// flags named in FlagKeys are bound when flags is not nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("schema.base_url", "")
	v.SetDefault("schema.directory", "")
	v.SetDefault("schema.mode", updater.Stale.String())
	v.SetDefault("schema.ttl", updater.DefaultTTL)
	v.SetDefault("schema.watch", false)
	v.SetDefault("schema.include_test_definitions", false)
	v.SetDefault("server.addr", "localhost:8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "strata")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("strata")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their configuration key.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the combination of schema sources.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fieldError(fe)
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	s := c.Schema
	switch {
	case s.BaseURL == "" && s.Directory == "":
		return errors.New("config: one of schema.base_url or schema.directory is required")
	case s.BaseURL != "" && s.Directory != "":
		return errors.New("config: schema.base_url and schema.directory are mutually exclusive")
	case s.Watch && s.Directory == "":
		return errors.New("config: schema.watch requires schema.directory")
	case s.Mode == updater.Static.String() && s.Directory == "":
		return errors.New("config: static mode requires schema.directory")
	}
	return nil
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Namespace())
	field = strings.TrimPrefix(field, "config.")
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a host:port address", field)
	case "gt", "gte":
		return fmt.Sprintf("%s must be positive", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// SDKOptions returns the sdk options described by the configuration.
func (c *Config) SDKOptions(logger *zap.Logger) ([]sdk.Option, error) {
	opts := []sdk.Option{
		sdk.IncludeTestDefinitions(c.Schema.IncludeTestDefinitions),
	}
	if logger != nil {
		opts = append(opts, sdk.WithLogger(logger))
	}
	if c.Metrics.Enabled {
		opts = append(opts, sdk.WithMetrics(c.Metrics.Namespace))
	}
	if c.Schema.Directory != "" {
		return append(opts,
			sdk.WithSchemaDirectory(c.Schema.Directory),
			sdk.Watch(c.Schema.Watch),
		), nil
	}
	mode, err := updater.ParseMode(c.Schema.Mode)
	if err != nil {
		return nil, err
	}
	return append(opts,
		sdk.WithBaseURL(c.Schema.BaseURL),
		sdk.WithMode(mode),
		sdk.WithTTL(c.Schema.TTL),
	), nil
}

// Logger builds the logger described by the configuration.
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	zc.Level = level
	return zc.Build()
}
