package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	applog "dogedash/internal/log"
	"dogedash/internal/source"
	"dogedash/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	client *http.Client
}

// NewFactory creates a new backend factory. A nil client uses the
// source's default.
func NewFactory(logger *slog.Logger, client *http.Client) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
		client: client,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case FilesBackend:
		return f.createFilesBackend(config)
	case HTTPBackend:
		return f.createHTTPBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createFilesBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	files := source.NewFiles(dataDir, config.Registry)

	f.logger.Info("Initialized files backend", "data_directory", dataDir)

	check := func(context.Context) error {
		info, err := os.Stat(dataDir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dataDir)
		}
		return nil
	}

	return &BackendResult{Fetcher: files, Name: FilesBackend.String(), Check: check}, nil
}

func (f *DefaultFactory) createHTTPBackend(config Config) (*BackendResult, error) {
	h, err := source.NewHTTP(config.BaseURL, config.Registry, f.client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize HTTP source: %w", err)
	}

	f.logger.Info("Initialized HTTP backend", "base_url", config.BaseURL)

	return &BackendResult{Fetcher: h, Name: HTTPBackend.String()}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Fetcher: repo,
		Name:    SQLiteBackend.String(),
		Cleanup: repo.Close,
		Check:   repo.Ping,
	}, nil
}
