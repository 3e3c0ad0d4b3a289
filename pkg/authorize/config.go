package authorize

import "github.com/Alijeyrad/simorq_booking/config"

// Config holds configuration for the authorization system
type Config struct {
	// CasbinModelPath is the path to the Casbin model configuration file
	CasbinModelPath string

	// EnableAudit enables audit logging for all authorization decisions
	EnableAudit bool

	// SuperadminBypass lets admins pass every check without a policy row
	SuperadminBypass bool

	// PolicySyncEnabled attaches a Postgres LISTEN/NOTIFY watcher so policy
	// changes propagate across instances
	PolicySyncEnabled bool

	// HealthCheckEnabled reports watcher reload failures through IsPolicyHealthy
	HealthCheckEnabled bool
}

// DefaultConfig returns sensible defaults for authorization configuration
func DefaultConfig() Config {
	return Config{
		CasbinModelPath:    "casbin_model.conf",
		EnableAudit:        true,
		SuperadminBypass:   true,
		PolicySyncEnabled:  false,
		HealthCheckEnabled: true,
	}
}

// FromCentralConfig converts central config.AuthorizationConfig to package Config
func FromCentralConfig(c config.AuthorizationConfig) Config {
	out := Config{
		CasbinModelPath:    c.CasbinModelPath,
		EnableAudit:        c.EnableAudit,
		SuperadminBypass:   c.SuperadminBypass,
		PolicySyncEnabled:  c.PolicySyncEnabled,
		HealthCheckEnabled: c.HealthCheckEnabled,
	}
	if out.CasbinModelPath == "" {
		out.CasbinModelPath = DefaultConfig().CasbinModelPath
	}
	return out
}
