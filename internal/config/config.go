// Package config loads lanchat settings from an optional TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidConfiguration is wrapped by every validation failure.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// SupportedSchemes lists the URL schemes a transport exists for.
var SupportedSchemes = []string{"mem", "redis", "nats"}

// Config holds all settings of the lanchat binary.
type Config struct {
	URL      string `toml:"url"`
	Room     string `toml:"room"`
	Username string `toml:"username"`
	LogFile  string `toml:"log_file"`
	Debug    bool   `toml:"debug"`
	// MetricsAddr serves the client metrics of `lanchat join`, disabled when empty.
	MetricsAddr string `toml:"metrics_addr"`

	Service ServiceConfig `toml:"service"`
}

// ServiceConfig holds the settings of `lanchat serve`.
type ServiceConfig struct {
	// MetricsAddr is the listen address of the Prometheus endpoint, disabled when empty.
	MetricsAddr string `toml:"metrics_addr"`
	// Announce publishes the broker on the LAN over mDNS.
	Announce bool `toml:"announce"`
	// Port is the announced broker port, taken from URL when zero.
	Port int `toml:"port"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		URL:     "nats://127.0.0.1:4222",
		Room:    "demo",
		LogFile: "debug.log",
		Service: ServiceConfig{
			Announce: true,
		},
	}
}

// Load returns the defaults overlaid with the TOML file at path, if any, and
// the LANCHAT_* environment variables. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides applies LANCHAT_URL, LANCHAT_ROOM and LANCHAT_USERNAME.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LANCHAT_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("LANCHAT_ROOM"); v != "" {
		c.Room = v
	}
	if v := os.Getenv("LANCHAT_USERNAME"); v != "" {
		c.Username = v
	}
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfiguration, strings.Join(msgs, "; "))
}

func (e ValidateErrors) Unwrap() error { return ErrInvalidConfiguration }

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.URL == "" {
		errs = append(errs, ValidationError{Field: "url", Message: "must not be empty"})
	} else if u, err := url.Parse(c.URL); err != nil {
		errs = append(errs, ValidationError{Field: "url", Message: err.Error()})
	} else if !slices.Contains(SupportedSchemes, strings.ToLower(u.Scheme)) {
		errs = append(errs, ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("unsupported scheme %q, must be one of: %s", u.Scheme, strings.Join(SupportedSchemes, ", ")),
		})
	}

	if c.Room == "" {
		errs = append(errs, ValidationError{Field: "room", Message: "must not be empty"})
	} else if strings.Contains(c.Room, "/") {
		errs = append(errs, ValidationError{Field: "room", Message: "must not contain '/'"})
	}

	if c.Service.Port < 0 || c.Service.Port > 65535 {
		errs = append(errs, ValidationError{Field: "service.port", Message: "must be between 0 and 65535"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateJoin checks the settings needed to join a room.
func (c *Config) ValidateJoin() error {
	var errs ValidateErrors
	if err := c.Validate(); err != nil {
		errs = append(errs, err.(ValidateErrors)...)
	}
	if strings.TrimSpace(c.Username) == "" {
		errs = append(errs, ValidationError{Field: "username", Message: "is required to join a room"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// AnnouncePort returns the broker port to announce.
func (c *Config) AnnouncePort() int {
	if c.Service.Port > 0 {
		return c.Service.Port
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0
	}
	return port
}
