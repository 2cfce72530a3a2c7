// Package passkey holds WebAuthn ceremony configuration.
package passkey

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// ChallengeKind describes the ceremony a challenge was issued for.
type ChallengeKind string

const (
	ChallengeKindRegistration ChallengeKind = "registration"
	ChallengeKindLogin        ChallengeKind = "login"
)

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string        `env:"TEAMSPACE_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"Teamspace"`
	RPID          string        `env:"TEAMSPACE_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string      `env:"TEAMSPACE_WEBAUTHN_RP_ORIGINS"      envSeparator:","`
	ChallengeTTL  time.Duration `env:"TEAMSPACE_WEBAUTHN_CHALLENGE_TTL"   envDefault:"5m"`
}

// LoadConfigFromEnv returns passkey configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{
			RPDisplayName: "Teamspace",
			RPID:          "localhost",
			RPOrigins:     []string{"http://localhost:8080"},
			ChallengeTTL:  5 * time.Minute,
		}
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = "Teamspace"
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:8080"}
	}
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 5 * time.Minute
	}
	return cfg
}
