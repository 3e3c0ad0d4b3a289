package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Alijeyrad/simorq_booking/pkg/constants"
)

var GlobalConf *Config

func ReadConfig(configPath string) (*Config, error) {
	viper.SetConfigName(constants.ConfigName)
	viper.SetConfigType(constants.ConfigFormat)
	viper.AddConfigPath(configPath)

	// Allow env vars to override config values.
	// e.g. SIMORQ_DATABASE_HOST overrides database.host
	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read the config file (optional in Docker environments)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
				return nil, fmt.Errorf("error reading config file: %v", err)
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}

	GlobalConf = config

	return config
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.body_limit_kb", 512)
	viper.SetDefault("server.rate_limit.max", 20)
	viper.SetDefault("server.rate_limit.expiration_seconds", 30)

	viper.SetDefault("booking.store", "postgres")
	viper.SetDefault("booking.default_timezone", "Asia/Tehran")
	viper.SetDefault("booking.min_slot_minutes", 15)
	viper.SetDefault("booking.max_slot_minutes", 240)
	viper.SetDefault("booking.drop_past_slots", true)
	viper.SetDefault("booking.lock_ttl_seconds", 10)
	viper.SetDefault("booking.audit_queue_size", 256)

	viper.SetDefault("codes.booking_prefix", "SQ")
	viper.SetDefault("codes.booking_length", 8)
	viper.SetDefault("codes.booking_group_size", 4)

	viper.SetDefault("authentication.paseto.mode", "local")
	viper.SetDefault("authentication.paseto.issuer", "simorq_booking")
	viper.SetDefault("authentication.paseto.audience", "simorq_booking_api")
	viper.SetDefault("authentication.paseto.access_ttl_minutes", 60)

	viper.SetDefault("authorization.casbin_model_path", "casbin_model.conf")
	viper.SetDefault("authorization.enable_audit", true)

	viper.SetDefault("observability.service_name", "simorq_booking")
	viper.SetDefault("logging.level", "info")
}
