package storage

import (
	"fmt"
	"io"
)

// New builds the backend selected by config.Type. The returned closer releases
// backend connections and is a no-op for memory and file stores.
func New(config Config) (Store, io.Closer, error) {
	switch config.Type {
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "file", "":
		s, err := NewFileStore(config.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "redis":
		s, err := NewRedisStore(config)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "sqlite":
		s, err := OpenSQLite(config.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, config.Type)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
