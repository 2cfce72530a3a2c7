// Package session holds authenticated session policy configuration.
package session

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// CookieName is the session cookie issued by the web layer.
const CookieName = "ts_session"

// Config controls session token lifetime.
type Config struct {
	TTL time.Duration `env:"TEAMSPACE_SESSION_TTL" envDefault:"720h"`
}

// LoadConfigFromEnv returns session configuration with a 30-day default TTL.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.TTL <= 0 {
		cfg.TTL = 720 * time.Hour
	}
	return cfg
}
