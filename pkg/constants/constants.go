package constants

const (
	ConfigName   = "config"
	ConfigFormat = "yaml"

	// EnvPrefix namespaces environment overrides, e.g. SIMORQ_REDIS_ADDR.
	EnvPrefix = "SIMORQ"

	ServiceName = "simorq_booking"
)
