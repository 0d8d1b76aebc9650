package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Auth   AuthConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type AuthConfig struct {
	// Required toggles the two relay variants: credential-gated
	// broadcast eligibility, or every connection eligible on connect.
	Required      bool
	JWTSecret     string
	VerifyTimeout time.Duration
}

// Load reads configuration from the environment, with a local .env file
// applied first when present.
func Load() (*Config, error) {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	viper.SetDefault("RELAY_HOST", "")
	viper.SetDefault("RELAY_PORT", "8080")
	viper.SetDefault("RELAY_READ_TIMEOUT", 30*time.Second)
	viper.SetDefault("RELAY_WRITE_TIMEOUT", 30*time.Second)
	viper.SetDefault("RELAY_IDLE_TIMEOUT", 60*time.Second)
	viper.SetDefault("RELAY_SHUTDOWN_TIMEOUT", 30*time.Second)
	viper.SetDefault("RELAY_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("RELAY_AUTH_REQUIRED", true)
	viper.SetDefault("RELAY_JWT_SECRET", "secret")
	viper.SetDefault("RELAY_VERIFY_TIMEOUT", 10*time.Second)
	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:            viper.GetString("RELAY_HOST"),
			Port:            viper.GetString("RELAY_PORT"),
			ReadTimeout:     viper.GetDuration("RELAY_READ_TIMEOUT"),
			WriteTimeout:    viper.GetDuration("RELAY_WRITE_TIMEOUT"),
			IdleTimeout:     viper.GetDuration("RELAY_IDLE_TIMEOUT"),
			ShutdownTimeout: viper.GetDuration("RELAY_SHUTDOWN_TIMEOUT"),
			AllowedOrigins:  splitOrigins(viper.GetString("RELAY_ALLOWED_ORIGINS")),
		},
		Auth: AuthConfig{
			Required:      viper.GetBool("RELAY_AUTH_REQUIRED"),
			JWTSecret:     viper.GetString("RELAY_JWT_SECRET"),
			VerifyTimeout: viper.GetDuration("RELAY_VERIFY_TIMEOUT"),
		},
	}
	return cfg, nil
}

func splitOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
