package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/danmuck/newswire/internal/newsapi"
	"github.com/danmuck/newswire/internal/server"
	"github.com/danmuck/newswire/internal/store"
)

const (
	envAPIKey     = "NEWS_API_KEY"
	envAdminToken = "NEWSWIRE_ADMIN_TOKEN"
)

// newsctl serve config.toml key mapping.
type fileConfig struct {
	Addr             string   `toml:"addr"`
	AdminAddr        string   `toml:"admin_addr"`
	AdminToken       string   `toml:"admin_token"`
	CORSOrigins      []string `toml:"cors_origins"`
	MaxLineBytes     int      `toml:"max_line_bytes"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	APIBaseURL       string   `toml:"api_base_url"`
	APIKey           string   `toml:"api_key"`
	APITimeout       string   `toml:"api_timeout"`
	StoreBackend     string   `toml:"store_backend"`
	StoreDir         string   `toml:"store_dir"`
	StoreGroup       string   `toml:"store_group"`
	SQLitePath       string   `toml:"sqlite_path"`
	RedisAddr        string   `toml:"redis_addr"`
	RedisPrefix      string   `toml:"redis_prefix"`
	RedisTTL         string   `toml:"redis_ttl"`
}

type serverConfig struct {
	Service server.ServiceConfig
	News    newsapi.Config
	Store   store.Config
}

func defaultServerConfig() serverConfig {
	st := store.DefaultConfig()
	st.Dir = filepath.Join(xdg.DataHome, "newswire", "responses")
	st.SQLitePath = filepath.Join(xdg.DataHome, "newswire", "responses.db")
	return serverConfig{
		Service: server.DefaultServiceConfig(),
		News:    newsapi.DefaultConfig(),
		Store:   st,
	}
}

// loadServerConfig overlays keys present in path onto the defaults. An empty
// path yields the defaults.
func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serverConfig{}, fmt.Errorf("load server config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return serverConfig{}, fmt.Errorf("load server config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Service.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.Service.AdminListenAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.Service.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.Service.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("max_line_bytes") {
		cfg.Service.MaxLineBytes = raw.MaxLineBytes
	}
	if meta.IsDefined("handshake_timeout") {
		if cfg.Service.HandshakeTimeout, err = parseDuration("handshake_timeout", raw.HandshakeTimeout); err != nil {
			return serverConfig{}, err
		}
	}
	if meta.IsDefined("api_base_url") {
		cfg.News.BaseURL = strings.TrimSpace(raw.APIBaseURL)
	}
	if meta.IsDefined("api_key") {
		cfg.News.APIKey = strings.TrimSpace(raw.APIKey)
	}
	if meta.IsDefined("api_timeout") {
		if cfg.News.Timeout, err = parseDuration("api_timeout", raw.APITimeout); err != nil {
			return serverConfig{}, err
		}
	}
	if meta.IsDefined("store_backend") {
		cfg.Store.Backend = strings.ToLower(strings.TrimSpace(raw.StoreBackend))
	}
	if meta.IsDefined("store_dir") {
		cfg.Store.Dir = resolveRelative(path, raw.StoreDir)
	}
	if meta.IsDefined("store_group") {
		cfg.Store.Group = strings.TrimSpace(raw.StoreGroup)
	}
	if meta.IsDefined("sqlite_path") {
		cfg.Store.SQLitePath = resolveRelative(path, raw.SQLitePath)
	}
	if meta.IsDefined("redis_addr") {
		cfg.Store.RedisAddr = strings.TrimSpace(raw.RedisAddr)
	}
	if meta.IsDefined("redis_prefix") {
		cfg.Store.RedisPrefix = raw.RedisPrefix
	}
	if meta.IsDefined("redis_ttl") {
		if cfg.Store.RedisTTL, err = parseDuration("redis_ttl", raw.RedisTTL); err != nil {
			return serverConfig{}, err
		}
	}
	return cfg, nil
}

// applyEnvOverrides lets NEWS_API_KEY and NEWSWIRE_ADMIN_TOKEN replace the
// file values.
func applyEnvOverrides(cfg *serverConfig) {
	if key := strings.TrimSpace(os.Getenv(envAPIKey)); key != "" {
		cfg.News.APIKey = key
	}
	if token := strings.TrimSpace(os.Getenv(envAdminToken)); token != "" {
		cfg.Service.AdminToken = token
	}
}

func (c serverConfig) Validate() error {
	if strings.TrimSpace(c.News.APIKey) == "" {
		return fmt.Errorf("%w: set %s or api_key", newsapi.ErrAPIKeyRequired, envAPIKey)
	}
	if strings.TrimSpace(c.Service.ListenAddr) == "" {
		return errors.New("server config missing addr")
	}
	switch c.Store.Backend {
	case "", store.BackendFile, store.BackendSQLite, store.BackendRedis, store.BackendMemory, store.BackendNone:
	default:
		return fmt.Errorf("%w: %q", store.ErrUnknownBackend, c.Store.Backend)
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("load server config: %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("load server config: %s must not be negative", key)
	}
	return d, nil
}

// resolveRelative anchors a relative path at the config file's directory.
func resolveRelative(configPath, value string) string {
	value = strings.TrimSpace(value)
	if value == "" || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(filepath.Dir(configPath), value)
}
