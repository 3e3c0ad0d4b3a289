package pasetotoken

import (
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/config"
)

// NewPasetoManager creates a new PASETO manager from config.
// Returns an error if the configuration is invalid.
func NewPasetoManager(cfg *config.Config) (*Manager, error) {
	p := cfg.Authentication.Paseto

	keys, err := LoadKeys(KeyStrings{
		Mode:         Mode(p.Mode),
		SymmetricHex: p.LocalKeyHex,
		SecretHex:    p.SecretKeyHex,
		PublicHex:    p.PublicKeyHex,
	})
	if err != nil {
		return nil, err
	}

	return New(Config{
		Mode:      Mode(p.Mode),
		Issuer:    p.Issuer,
		Audience:  p.Audience,
		AccessTTL: time.Duration(p.AccessTTLMinutes) * time.Minute,
	}, keys)
}

// SessionKey is the Redis key whose presence keeps tokens bound to the
// session valid. Deleting it revokes them.
func SessionKey(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}
