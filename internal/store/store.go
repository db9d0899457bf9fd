// Package store persists raw upstream responses keyed by (username, action).
// Writes for the same key are last-write-wins.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

var (
	ErrUnknownBackend = errors.New("store: unknown backend")
	ErrInvalidKey     = errors.New("store: invalid key")
	ErrNotFound       = errors.New("store: not found")
)

// Key identifies one persisted response.
type Key struct {
	Username string
	Action   string
}

func (k Key) Validate() error {
	if strings.TrimSpace(k.Username) == "" {
		return fmt.Errorf("%w: missing username", ErrInvalidKey)
	}
	if strings.TrimSpace(k.Action) == "" {
		return fmt.Errorf("%w: missing action", ErrInvalidKey)
	}
	return nil
}

// Persister receives raw upstream payloads as a side effect of list actions.
type Persister interface {
	Persist(ctx context.Context, key Key, payload []byte) error
}

// Loader reads back a persisted payload.
type Loader interface {
	Load(ctx context.Context, key Key) ([]byte, error)
}

// Lister enumerates stored keys whose username starts with prefix.
type Lister interface {
	Keys(prefix string) []Key
}

// Store is a backend that can both write and read.
type Store interface {
	Persister
	Loader
	Backend() string
	Close() error
}

type Config struct {
	Backend     string
	Dir         string
	Group       string
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string
	RedisTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Backend:     BackendFile,
		Dir:         "responses",
		Group:       DefaultGroup,
		SQLitePath:  "responses.db",
		RedisAddr:   "127.0.0.1:6379",
		RedisPrefix: "newswire:response:",
	}
}

// Open constructs the backend named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		return NewFileStore(cfg.Dir, cfg.Group), nil
	case BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case BackendRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPrefix, cfg.RedisTTL), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Nop discards every payload.
type Nop struct{}

func (Nop) Persist(context.Context, Key, []byte) error { return nil }

func (Nop) Load(context.Context, Key) ([]byte, error) { return nil, ErrNotFound }

func (Nop) Backend() string { return BackendNone }

func (Nop) Close() error { return nil }
