package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage persists session tokens between runs.

// SessionStore keeps session tokens until they expire.
type SessionStore interface {
	Close() error
	// Token returns the stored token for key. ok is false when nothing usable is stored.
	Token(key string) (token string, ok bool, err error)
	// SaveToken stores token under key. A zero expiresAt means now plus the store TTL.
	SaveToken(key, token string, expiresAt time.Time) error
	// Forget removes key.
	Forget(key string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	SessionTTL      time.Duration
	CleanupInterval time.Duration
}

const (
	defaultSessionTTL      = 12 * time.Hour
	defaultCleanupInterval = time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (SessionStore, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		store, err := openBolt(path, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// SessionKey identifies the session of one principal against one API.
func SessionKey(baseURL, version, scheme string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "|" + version + "|" + scheme
}

func normalizeOptions(opts Options) Options {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                              { return nil }
func (noopStore) Token(string) (string, bool, error)        { return "", false, nil }
func (noopStore) SaveToken(string, string, time.Time) error { return nil }
func (noopStore) Forget(string) error                       { return nil }
