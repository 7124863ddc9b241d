package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "STUDIO"

var errInvalid = errors.New("config: invalid value")

// Config holds all application configuration.
type Config struct {
	APIURL           string        `mapstructure:"api_url" validate:"required,url"`
	Port             int           `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel         string        `mapstructure:"log_level" validate:"required"`
	BatchConcurrency int           `mapstructure:"batch_concurrency" validate:"min=1,max=100"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" validate:"min=1s"`
	RateLimit        float64       `mapstructure:"rate_limit" validate:"gt=0"`
	SessionFile      string        `mapstructure:"session_file" validate:"required"`
}

// Load reads configuration from STUDIO_* environment variables (seeded from a
// .env file when present) and an optional studio.yaml. Environment variables
// take precedence over the file. A non-empty configFile names the file
// explicitly and must exist.
func Load(configFile string) (Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("studio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "virail-studio"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	return cfg, cfg.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "https://api.virail.studio")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "ERROR")
	v.SetDefault("batch_concurrency", 4)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("rate_limit", 5.0)
	v.SetDefault("session_file", defaultSessionFile())
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "virail-studio", "session.json")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", errInvalid, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", errInvalid, strings.Join(msgs, "; "))
}
