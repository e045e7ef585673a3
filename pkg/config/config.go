// Package config loads skillkit settings from the config file, the
// environment and .env files.
package config

import (
	"context"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/services"
	"github.com/agentskills/skillkit/pkg/services/generative"
	"github.com/agentskills/skillkit/pkg/services/mcp"
	"github.com/agentskills/skillkit/pkg/skills"
	"github.com/agentskills/skillkit/pkg/trends"
)

// EnvPrefix prefixes every environment override, e.g. SKILLKIT_SERVER_PORT.
const EnvPrefix = "SKILLKIT"

type DatabaseConfig struct {
	// Path of the SQLite database. Empty uses the default under the base path.
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
}

type DispatchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio   float64 `mapstructure:"ratio" validate:"min=0,max=1"`
}

type Config struct {
	LogLevel   string               `mapstructure:"log_level" validate:"oneof=panic fatal error warn warning info debug trace"`
	LogFormat  string               `mapstructure:"log_format" validate:"oneof=fmt json"`
	Database   DatabaseConfig       `mapstructure:"database"`
	Server     ServerConfig         `mapstructure:"server"`
	Dispatch   DispatchConfig       `mapstructure:"dispatch"`
	Retry      services.RetryConfig `mapstructure:"retry"`
	MCP        mcp.Config           `mapstructure:"mcp"`
	Generative generative.Config    `mapstructure:"generative"`
	Trends     trends.Config        `mapstructure:"trends"`
	Tracing    TracingConfig        `mapstructure:"tracing"`
}

// SetDefaults registers the default of every key so that environment
// overrides are picked up on unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("database.path", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("dispatch.timeout", skills.DefaultTimeout)
	v.SetDefault("dispatch.poll_interval", services.DefaultPollInterval)
	v.SetDefault("retry.attempts", services.DefaultRetryConfig.Attempts)
	v.SetDefault("retry.initial_delay", services.DefaultRetryConfig.InitialDelay)
	v.SetDefault("retry.max_delay", services.DefaultRetryConfig.MaxDelay)
	v.SetDefault("retry.backoff_type", services.DefaultRetryConfig.BackoffType)
	v.SetDefault("generative.provider", generative.ProviderOpenAI)
	v.SetDefault("generative.model", "")
	v.SetDefault("generative.image_model", "")
	v.SetDefault("generative.max_tokens", 0)
	v.SetDefault("generative.openai.api_key", "")
	v.SetDefault("generative.openai.base_url", "")
	v.SetDefault("generative.anthropic.api_key", "")
	v.SetDefault("generative.anthropic.base_url", "")
	v.SetDefault("generative.google.api_key", "")
	v.SetDefault("generative.google.project", "")
	v.SetDefault("generative.google.location", "")
	v.SetDefault("trends.relevance_threshold", 0.0)
	v.SetDefault("trends.timeout", trends.DefaultTimeout)
	v.SetDefault("trends.poll_interval", services.DefaultPollInterval)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
}

// Init prepares v to read config.yaml from $HOME/.skillkit or the working
// directory and SKILLKIT_* environment variables. A missing config file is
// not an error.
func Init(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.skillkit")
	v.AddConfigPath(".")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// LoadEnv loads the first .env file found among paths, defaulting to the
// working directory. Variables already set in the environment win.
func LoadEnv(ctx context.Context, paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logger.G(ctx).WithError(err).WithField("path", p).Warn("failed to load .env file")
		} else {
			logger.G(ctx).WithField("path", p).Debug("loaded .env file")
		}
		return
	}
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the fields carrying validation rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return errors.Errorf("invalid configuration: %s fails %s", configKey(first.Namespace()), first.Tag())
		}
		return errors.Wrap(err, "invalid configuration")
	}
	switch c.Retry.BackoffType {
	case "fixed", "exponential":
	default:
		return errors.Errorf("invalid configuration: retry.backoff_type must be fixed or exponential, got %q", c.Retry.BackoffType)
	}
	switch c.Generative.Provider {
	case generative.ProviderOpenAI, generative.ProviderAnthropic, generative.ProviderGoogle:
	default:
		return errors.Errorf("invalid configuration: unsupported generative.provider %q", c.Generative.Provider)
	}
	return nil
}

// configKey strips the root struct name from a validator namespace.
func configKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
