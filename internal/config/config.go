package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is read from environment variables, with an optional .env file for
// local development.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	ServerAddr    string
	CORSOrigins   []string
	ScopeTTL      time.Duration

	// BootstrapActor, when set to a user id, makes startup mint a super-admin
	// scope token for that actor and print it, so a fresh deployment can be
	// driven before the auth layer is pointed at it.
	BootstrapActor string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		ServerAddr:     getenv("SERVER_ADDR", ":8080"),
		ScopeTTL:       12 * time.Hour,
		BootstrapActor: os.Getenv("SCOPE_BOOTSTRAP_ACTOR"),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL environment variable is required")
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			cfg.CORSOrigins = append(cfg.CORSOrigins, strings.TrimSpace(o))
		}
	}

	if ttl := os.Getenv("SCOPE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, errors.New("SCOPE_TTL must be a valid duration (e.g. 12h)")
		}
		cfg.ScopeTTL = d
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
