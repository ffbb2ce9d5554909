// Package storage is the durable key/value layer behind visit timelines.
// Every driver overwrites the full value on Put; there is no partial update.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrInvalidKey    = errors.New("invalid storage key")
)

// Store is a flat key/value store. Get reports ok=false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a driver.
type Options struct {
	Driver      string
	Path        string // directory (file) or database file (sqlite)
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
}

// Open constructs the driver named in opts.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Driver {
	case DriverMemory:
		s = NewMemory()
	case DriverFile, "":
		s, err = NewFile(opts.Path)
	case DriverSQLite:
		s, err = NewSQLite(opts.Path)
	case DriverPostgres:
		s, err = NewPostgres(ctx, opts.DatabaseURL, opts.MaxConns, opts.MinConns)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", opts.Driver, err)
	}
	logger.Info().Str("driver", opts.Driver).Str("path", opts.Path).Msg("storage opened")
	return s, nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	return nil
}
