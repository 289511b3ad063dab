package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the realtime engine. The grace window and sweep interval are
// policy, not contract; both can be overridden via the environment.
const (
	DefaultGraceWindow   = 5 * time.Minute
	DefaultSweepInterval = 30 * time.Second
	DefaultSendBuffer    = 256
	DefaultHTTPAddr      = ":8080"
)

// Config holds all configuration for the application.
type Config struct {
	HTTPAddr      string
	DBUrl         string
	DBNs          string
	DBDb          string
	DBUser        string
	DBPass        string
	SessionSecret string

	// GraceWindow is how long a fully disconnected session survives before
	// the registry cancels it with reason "timeout".
	GraceWindow time.Duration
	// SweepInterval is the cadence of the background inactivity sweep.
	SweepInterval time.Duration
	// SendBuffer is the per-connection outbound channel capacity.
	SendBuffer int
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", DefaultHTTPAddr),
		DBUrl:         os.Getenv("SURREAL_URL"),
		DBUser:        os.Getenv("SURREAL_USER"),
		DBPass:        os.Getenv("SURREAL_PASS"),
		DBNs:          os.Getenv("SURREAL_NS"),
		DBDb:          os.Getenv("SURREAL_DB"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		GraceWindow:   getDuration("SESSION_GRACE_WINDOW", DefaultGraceWindow),
		SweepInterval: getDuration("SESSION_SWEEP_INTERVAL", DefaultSweepInterval),
		SendBuffer:    DefaultSendBuffer,
	}

	if cfg.DBUrl == "" || cfg.DBNs == "" || cfg.DBDb == "" {
		log.Fatal("Required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set.")
	}
	if cfg.SessionSecret == "" {
		log.Fatal("Required environment variable SESSION_SECRET is not set.")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
