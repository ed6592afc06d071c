package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dogedash/internal/core"
	"dogedash/internal/dogeapi"
	"dogedash/internal/export"
	applog "dogedash/internal/log"
	"dogedash/internal/storage"
)

const statisticsName = "statistics"

// formatSQLite archives into the dashboard database instead of a file.
const formatSQLite = "sqlite"

// archive is the part of the SQLite repository doge-fetch writes to.
type archive interface {
	Save(ctx context.Context, kind core.Kind, records []core.Record) error
	SaveStatistics(ctx context.Context, dimension string, rows []core.Record) error
}

// fetcher downloads datasets and writes them in one output format.
type fetcher struct {
	api    *dogeapi.Client
	format string
	dir    string
	logger *slog.Logger

	mu    sync.Mutex // serialises archive writes
	store archive
}

func endpointNames() []string {
	names := make([]string, 0, core.NumKinds+1)
	for _, k := range core.Kinds {
		names = append(names, k.String())
	}
	return append(names, statisticsName)
}

func runGet(cmd *cobra.Command, args []string) error {
	f, cleanup, err := newFetcher()
	if err != nil {
		return err
	}
	defer cleanup()

	if args[0] == statisticsName {
		if output != "" {
			return fmt.Errorf("--output is not supported for statistics, which writes three files")
		}
		return f.saveStatistics(cmd.Context())
	}
	kind, err := core.ParseKind(args[0])
	if err != nil {
		return fmt.Errorf("unknown endpoint %q: choose one of %v", args[0], endpointNames())
	}
	return f.saveKind(cmd.Context(), kind, output)
}

func runAll(cmd *cobra.Command, _ []string) error {
	f, cleanup, err := newFetcher()
	if err != nil {
		return err
	}
	defer cleanup()
	return f.saveAll(cmd.Context())
}

func newFetcher() (*fetcher, func(), error) {
	logger := applog.New(applog.Config{
		Component: applog.ComponentAPI,
		Handler:   applog.NewHandler(os.Stderr, applog.ParseLevel(logLevel), "text"),
	})
	applog.SetDefault(logger)

	opts := []dogeapi.Option{
		dogeapi.WithAPIKey(apiKey),
		dogeapi.WithRetries(retries),
		dogeapi.WithTimeout(timeout),
		dogeapi.WithPerPage(perPage),
		dogeapi.WithRate(rps),
	}
	if proxy != "" {
		opts = append(opts, dogeapi.WithProxy(proxy))
	}
	api, err := dogeapi.New(baseURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	if proxy != "" {
		logger.Info("Using proxy", "proxy", proxy)
	}

	f := &fetcher{api: api, format: format, dir: outDir, logger: logger.Logger}
	cleanup := func() {}

	if format == formatSQLite {
		repo, err := storage.NewSQLiteRepository(dbPath)
		if err != nil {
			return nil, nil, err
		}
		f.store = repo
		cleanup = func() { _ = repo.Close() }
	} else if _, err := export.ParseFormat(format); err != nil {
		return nil, nil, fmt.Errorf("%w, or sqlite", err)
	}
	return f, cleanup, nil
}

// saveKind downloads kind and writes it to output, or to the default file
// name under the output directory when output is empty.
func (f *fetcher) saveKind(ctx context.Context, kind core.Kind, output string) error {
	start := time.Now()
	records, err := f.api.Fetch(ctx, kind)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", kind, err)
	}
	f.logger.InfoContext(ctx, "Retrieved dataset",
		applog.FieldKind, kind.String(),
		applog.FieldRecords, humanize.Comma(int64(len(records))),
		applog.FieldDurationHuman, time.Since(start).Round(time.Millisecond).String())

	if f.store != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := f.store.Save(ctx, kind, records); err != nil {
			return fmt.Errorf("archive %s: %w", kind, err)
		}
		f.logger.InfoContext(ctx, "Dataset archived", applog.FieldKind, kind.String(), "db", dbPath)
		return nil
	}

	if output == "" {
		output = filepath.Join(f.dir, export.FileName(kind.String(), export.Format(f.format)))
	}
	return f.writeFile(ctx, output, records)
}

// saveStatistics downloads the statistics endpoint and writes each of its
// reports separately.
func (f *fetcher) saveStatistics(ctx context.Context) error {
	reports, err := f.api.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("fetch statistics: %w", err)
	}
	for _, dim := range dogeapi.StatisticsDimensions {
		rows := reports[dim]
		if f.store != nil {
			if err := f.store.SaveStatistics(ctx, dim, rows); err != nil {
				return fmt.Errorf("archive statistics %s: %w", dim, err)
			}
			f.logger.InfoContext(ctx, "Statistics archived", "dimension", dim, applog.FieldRecords, len(rows))
			continue
		}
		name := export.FileName(statisticsName+"_"+dim, export.Format(f.format))
		if err := f.writeFile(ctx, filepath.Join(f.dir, name), rows); err != nil {
			return err
		}
	}
	return nil
}

// saveAll downloads the four datasets concurrently. The first failure
// cancels the remaining downloads.
func (f *fetcher) saveAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range core.Kinds {
		g.Go(func() error {
			return f.saveKind(ctx, kind, "")
		})
	}
	return g.Wait()
}

func (f *fetcher) writeFile(ctx context.Context, path string, records []core.Record) error {
	if f.format == string(export.FormatCSV) && len(records) == 0 {
		f.logger.WarnContext(ctx, "No data to save", "file", path)
		return nil
	}
	size, err := export.WriteFile(path, export.Format(f.format), records)
	if err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "Data saved",
		applog.FieldComponent, applog.ComponentExport,
		"file", path,
		applog.FieldRecords, humanize.Comma(int64(len(records))),
		"size", humanize.Bytes(uint64(size)))
	return nil
}
