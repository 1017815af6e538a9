package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	DefaultPort        = 8080
	DefaultJWTIssuer   = "sysviz-api"
	DefaultJWTAudience = "sysviz"
)

var (
	ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("config: JWT_SECRET is required")
)

type Environment struct {
	Port           int
	DatabaseURL    string
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AllowedOrigins []string
	Development    bool
	// DisconnectScope is "global" or "workspace".
	DisconnectScope string
}

// Load reads the process environment. The .env file, if any, is loaded by
// main before this runs.
func Load() (*Environment, error) {
	env := &Environment{
		Port:            DefaultPort,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTIssuer:       getenv("JWT_ISSUER", DefaultJWTIssuer),
		JWTAudience:     getenv("JWT_AUDIENCE", DefaultJWTAudience),
		AllowedOrigins:  []string{"http://localhost:3000"},
		Development:     os.Getenv("APP_ENV") == "development",
		DisconnectScope: getenv("RELAY_DISCONNECT_SCOPE", "global"),
	}

	// DB_URL is the older name for the same setting
	if env.DatabaseURL == "" {
		env.DatabaseURL = os.Getenv("DB_URL")
	}
	if env.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	if env.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 {
			return nil, errors.New("config: PORT must be a positive integer")
		}
		env.Port = p
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		env.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				env.AllowedOrigins = append(env.AllowedOrigins, o)
			}
		}
	}

	return env, nil
}

// NewLogger returns a console logger in development and a JSON logger
// otherwise.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
