// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Server configures cmd/api.
type Server struct {
	Addr        string `envconfig:"ADDR" default:":8443"`
	TLSCert     string `envconfig:"TLS_CERT"`
	TLSKey      string `envconfig:"TLS_KEY"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`
	// Users holds user:password pairs allowed to log in, e.g. "admin:secret".
	Users      map[string]string `envconfig:"USERS"`
	SessionTTL time.Duration     `envconfig:"SESSION_TTL" default:"24h"`

	ImageDir     string `envconfig:"IMAGE_DIR" default:"./images"`
	ImageBaseURL string `envconfig:"IMAGE_BASE_URL" default:"/images"`

	OTelHost         string  `envconfig:"OTEL_HOST"`
	TraceProbability float64 `envconfig:"TRACE_PROBABILITY" default:"1.0"`
	LogLevel         string  `envconfig:"LOG_LEVEL" default:"info"`
}

// Client configures cmd/orderdesk.
type Client struct {
	APIURL   string        `envconfig:"API_URL" default:"https://localhost:8443"`
	Username string        `envconfig:"API_USER"`
	Password string        `envconfig:"API_PASSWORD"`
	Timeout  time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
	LogLevel string        `envconfig:"LOG_LEVEL" default:"warn"`
}

// LoadServer reads Server from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return Server{}, fmt.Errorf("load server config: %w", err)
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return Server{}, fmt.Errorf("load server config: TLS_CERT and TLS_KEY must be set together")
	}
	if cfg.TraceProbability < 0 || cfg.TraceProbability > 1 {
		return Server{}, fmt.Errorf("load server config: TRACE_PROBABILITY must be within [0,1]")
	}
	return cfg, nil
}

// LoadClient reads Client from the environment.
func LoadClient() (Client, error) {
	var cfg Client
	if err := envconfig.Process("", &cfg); err != nil {
		return Client{}, fmt.Errorf("load client config: %w", err)
	}
	return cfg, nil
}
