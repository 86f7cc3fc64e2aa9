// Package config provides centralized configuration management for the
// server process.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport modes selectable via MCP_TRANSPORT.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration parameters for the server.
type Config struct {
	YouTrack  YouTrackConfig
	Transport TransportConfig
	LogLevel  string
}

// YouTrackConfig holds the connection settings for the YouTrack instance.
type YouTrackConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// TransportConfig selects and parameterizes the serving transport.
type TransportConfig struct {
	Mode string
	Host string
	Port int
}

// Address returns the host:port the HTTP transport binds to.
func (t TransportConfig) Address() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Load initializes configuration from environment variables and validates
// it. Callers that layer flag overrides on top use FromEnv and Validate
// separately.
func Load() (*Config, error) {
	config := FromEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// FromEnv reads configuration from environment variables without
// validating it. A .env file in the working directory is read first when
// present; real environment variables win over it.
func FromEnv() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	// Missing .env is fine.
	_ = v.ReadInConfig()

	_ = v.BindEnv("youtrack.url", "YOUTRACK_URL")
	_ = v.BindEnv("youtrack.api.token", "YOUTRACK_API_TOKEN")
	_ = v.BindEnv("youtrack.timeout.seconds", "YOUTRACK_TIMEOUT_SECONDS")
	_ = v.BindEnv("mcp.transport", "MCP_TRANSPORT")
	_ = v.BindEnv("mcp.host", "MCP_HOST")
	_ = v.BindEnv("mcp.port", "MCP_PORT")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	v.SetDefault("youtrack.timeout.seconds", 30)
	v.SetDefault("mcp.transport", TransportStdio)
	v.SetDefault("mcp.host", "localhost")
	v.SetDefault("mcp.port", 8000)
	v.SetDefault("log.level", "info")

	config := &Config{
		YouTrack: YouTrackConfig{
			URL:     v.GetString("youtrack.url"),
			Token:   v.GetString("youtrack.api.token"),
			Timeout: time.Duration(v.GetInt("youtrack.timeout.seconds")) * time.Second,
		},
		Transport: TransportConfig{
			Mode: strings.ToLower(v.GetString("mcp.transport")),
			Host: v.GetString("mcp.host"),
			Port: v.GetInt("mcp.port"),
		},
		LogLevel: strings.ToLower(v.GetString("log.level")),
	}

	return config
}

// Validate ensures that all required configuration values are provided.
func (config *Config) Validate() error {
	var missingVars []string

	if config.YouTrack.URL == "" {
		missingVars = append(missingVars, "YOUTRACK_URL")
	}
	if config.YouTrack.Token == "" {
		missingVars = append(missingVars, "YOUTRACK_API_TOKEN")
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if config.Transport.Mode != TransportStdio && config.Transport.Mode != TransportHTTP {
		return fmt.Errorf("invalid MCP_TRANSPORT %q: must be %q or %q",
			config.Transport.Mode, TransportStdio, TransportHTTP)
	}
	if config.Transport.Port < 1 || config.Transport.Port > 65535 {
		return fmt.Errorf("invalid MCP_PORT %d: must be between 1 and 65535", config.Transport.Port)
	}

	return nil
}
