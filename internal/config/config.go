package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultClientAddr     = "127.0.0.1:12345"
	DefaultClientUsername = "Guest"
)

// ClientConfig is the client profile (client.toml).
type ClientConfig struct {
	Addr     string `toml:"addr"`
	Username string `toml:"username"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{Addr: DefaultClientAddr, Username: DefaultClientUsername}
}

// LoadClientConfig reads a profile and fills unset keys with defaults.
func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	cfg = cfg.WithDefaults()
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func (c ClientConfig) WithDefaults() ClientConfig {
	c.Addr = strings.TrimSpace(c.Addr)
	c.Username = strings.TrimSpace(c.Username)
	if c.Addr == "" {
		c.Addr = DefaultClientAddr
	}
	if c.Username == "" {
		c.Username = DefaultClientUsername
	}
	return c
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("client config missing addr")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("client config addr invalid: %w", err)
	}
	if strings.ContainsAny(cfg.Username, "\r\n") {
		return fmt.Errorf("client config username must be a single line")
	}
	return nil
}
