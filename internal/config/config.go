package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config contains server configuration parameters.
type Config struct {
	HTTP   HTTP   `envPrefix:"HTTP_"`
	DB     DB     `envPrefix:"DB_"`
	JWT    JWT    `envPrefix:"JWT_"`
	Google Google `envPrefix:"GOOGLE_"`
	Avatar Avatar `envPrefix:"AVATAR_"`
}

// HTTP contains web server parameters.
type HTTP struct {
	Port string `env:"PORT" envDefault:"3000"`
}

// DB contains database connection parameters.
type DB struct {
	Path string `env:"PATH" envDefault:"microblog.db"`
}

// JWT contains session token parameters. The default secret exists only
// so a dev server starts without ceremony; set JWT_SECRET in production.
type JWT struct {
	Secret string `env:"SECRET" envDefault:"dev-secret-change-me-please"`
}

// Google contains OAuth client parameters. Leaving ClientID empty
// disables the Google login routes.
type Google struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL" envDefault:"http://localhost:3000/auth/google/callback"`
}

// Avatar contains generated-avatar storage parameters.
type Avatar struct {
	Dir string `env:"DIR" envDefault:"data/avatars"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
