package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string        `envconfig:"PORT" default:"8080"`
	DatabaseURL   string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxOpen     int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	DBMaxIdle     int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"2h"`
	RedisURL      string        `envconfig:"REDIS_URL"`
	PageCacheTTL  time.Duration `envconfig:"PAGE_CACHE_TTL" default:"10m"`
	FrontendURL   string        `envconfig:"FRONTEND_URL"`
	AdminURL      string        `envconfig:"ADMIN_URL"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"json"`
	AdminEmail    string        `envconfig:"ADMIN_EMAIL" default:"admin@storefront.local"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD" default:"admin123"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"false"`
	AuthRateLimit int           `envconfig:"AUTH_RATE_LIMIT" default:"10"`
}

// LoadEnv populates the process environment from a .env file when one is
// present. In deployed environments the variables are set directly, so a
// missing file is not an error.
func LoadEnv() error {
	_ = godotenv.Load()
	return nil
}

// Load decodes the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that critical settings are present.
func (c *Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}
	if c.AuthRateLimit <= 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT must be positive, got %d", c.AuthRateLimit)
	}
	return nil
}

// Warnings lists optional settings that are unset and what stops working
// without them.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.RedisURL == "" {
		warnings = append(warnings, "REDIS_URL not set - product page cache disabled")
	}
	if c.FrontendURL == "" {
		warnings = append(warnings, "FRONTEND_URL not set - CORS may not work correctly")
	}
	if c.AdminURL == "" {
		warnings = append(warnings, "ADMIN_URL not set")
	}
	return warnings
}

// AllowedOrigins returns the configured CORS origins, filtering out empty
// values.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range []string{c.FrontendURL, c.AdminURL} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}
