package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"dogedash/internal/core"
	applog "dogedash/internal/log"
)

// Files reads datasets from JSON files named after the base of each kind's
// configured path, inside one directory.
type Files struct {
	dir string
	reg *core.Registry
}

func NewFiles(dir string, reg *core.Registry) *Files {
	if dir == "" {
		dir = "data"
	}
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	return &Files{dir: dir, reg: reg}
}

// PathFor returns the file a kind is read from.
func (f *Files) PathFor(kind core.Kind) (string, error) {
	cfg, err := f.reg.Config(kind)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.dir, path.Base(cfg.Path)), nil
}

// Fetch implements Fetcher.
func (f *Files) Fetch(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	p, err := f.PathFor(kind)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	defer file.Close()

	records, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	slog.DebugContext(ctx, "Read dataset file",
		applog.FieldComponent, applog.ComponentSource,
		applog.FieldKind, kind.String(),
		"path", p,
		applog.FieldRecords, len(records))
	return records, nil
}
