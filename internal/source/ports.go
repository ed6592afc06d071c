// Package source retrieves complete datasets from static files, a static
// HTTP host or an in-memory store.
package source

import (
	"context"
	"errors"

	"dogedash/internal/core"
)

var (
	// ErrFetchFailure covers I/O errors and non-2xx responses.
	ErrFetchFailure = errors.New("dataset fetch failed")
	// ErrMalformedData means the body is not a JSON array of objects.
	ErrMalformedData = errors.New("malformed dataset")
)

// Ports for outbound adapters.
type (
	// Fetcher returns the full dataset for a kind in one call.
	Fetcher interface {
		Fetch(ctx context.Context, kind core.Kind) ([]core.Record, error)
	}

	// Archiver persists a fetched dataset so a later Fetch can serve it.
	Archiver interface {
		Save(ctx context.Context, kind core.Kind, records []core.Record) error
	}
)
