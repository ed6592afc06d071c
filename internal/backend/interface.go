package backend

import (
	"context"

	"dogedash/internal/core"
	"dogedash/internal/source"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the dataset source and optional cleanup function
type BackendResult struct {
	Fetcher source.Fetcher
	Name    string
	Cleanup CleanupFunc
	// Check reports whether the source is reachable; nil when the source
	// has nothing to check up front.
	Check func(context.Context) error
}

// Factory creates dataset sources based on configuration
type Factory interface {
	// CreateBackend creates a source instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Registry maps each kind to its path; defaults when nil
	Registry *core.Registry

	// Files specific
	DataDirectory string

	// HTTP specific
	BaseURL string

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	FilesBackend  BackendType = "files"
	HTTPBackend   BackendType = "http"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FilesBackend, HTTPBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
