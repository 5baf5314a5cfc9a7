package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulseofpeople/sessionkit/pkg/auth"
)

var (
	// ErrUnknownKind is returned for token kinds outside AccessToken/RefreshToken
	ErrUnknownKind = errors.New("unknown token kind")
	// ErrUnsupportedBackend is returned by New for unrecognised backend types
	ErrUnsupportedBackend = errors.New("unsupported token store backend")
)

// Kind identifies one half of the token pair
type Kind int

const (
	AccessToken Kind = iota
	RefreshToken
)

// Fixed storage keys, kept distinct from any other application data
const (
	AccessTokenKey  = "pulseofpeople_access_token"
	RefreshTokenKey = "pulseofpeople_refresh_token"
)

// Key returns the storage key for the kind
func (k Kind) Key() (string, error) {
	switch k {
	case AccessToken:
		return AccessTokenKey, nil
	case RefreshToken:
		return RefreshTokenKey, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
}

func (k Kind) String() string {
	switch k {
	case AccessToken:
		return "access"
	case RefreshToken:
		return "refresh"
	default:
		return "unknown"
	}
}

// Store is durable persistence for the access/refresh token pair.
//
// Absent tokens read as the empty string. Set writes both values before either
// is observable; Clear removes both. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the stored token of the given kind, or "" when absent
	Get(ctx context.Context, kind Kind) (string, error)

	// Set replaces the whole pair
	Set(ctx context.Context, access, refresh string) error

	// SetAccess replaces the access token and leaves the refresh token untouched
	SetAccess(ctx context.Context, access string) error

	// Clear removes both tokens
	Clear(ctx context.Context) error
}

// Load reads both tokens into a TokenPair
func Load(ctx context.Context, s Store) (auth.TokenPair, error) {
	access, err := s.Get(ctx, AccessToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	refresh, err := s.Get(ctx, RefreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return auth.TokenPair{Access: access, Refresh: refresh}, nil
}

// Config selects and configures a token store backend
type Config struct {
	Type string `yaml:"type"` // "memory", "file", "redis", "sqlite"

	// File config
	FilePath string `yaml:"file_path"`

	// Redis config
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`

	// SQLite config
	SQLitePath string `yaml:"sqlite_path"`
}

// DefaultConfig returns the file-backed configuration rooted at dir
func DefaultConfig(dir string) Config {
	return Config{
		Type:       "file",
		FilePath:   dir + "/tokens.json",
		RedisURL:   "redis://localhost:6379/0",
		SQLitePath: dir + "/tokens.db",
	}
}
