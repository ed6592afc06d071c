// Package export writes fetched datasets as indented JSON or CSV files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dogedash/internal/core"
)

// Format is an output file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format %q: must be json or csv", s)
}

// FileName returns the default output name for a dataset, e.g.
// doge_grants_data.json.
func FileName(name string, f Format) string {
	return fmt.Sprintf("doge_%s_data.%s", name, f)
}

// WriteJSON writes records as a two-space indented JSON array.
func WriteJSON(w io.Writer, records []core.Record) error {
	if records == nil {
		records = []core.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

// WriteCSV writes records with a header taken from the first record's
// fields in sorted order. Later fields missing from a record are empty;
// fields absent from the header are dropped. Nested values are written as
// JSON and nil as an empty cell. An empty dataset writes nothing.
func WriteCSV(w io.Writer, records []core.Record) error {
	first := firstRecord(records)
	if first == nil {
		return nil
	}
	header := make([]string, 0, len(first))
	for k := range first {
		header = append(header, k)
	}
	sort.Strings(header)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for i, field := range header {
			cell, err := Cell(rec[field])
			if err != nil {
				return fmt.Errorf("field %s: %w", field, err)
			}
			row[i] = cell
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var cleaner = strings.NewReplacer("\u200b", "", "\r", " ", "\n", " ")

// Cell renders one value for a CSV cell.
func Cell(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return cleaner.Replace(t), nil
	case map[string]any, []any, core.Record:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return core.Stringify(t), nil
	}
}

func firstRecord(records []core.Record) core.Record {
	for _, r := range records {
		if r != nil {
			return r
		}
	}
	return nil
}

// WriteFile writes records to path in format f and returns the file size.
// Missing parent directories are created.
func WriteFile(path string, f Format, records []core.Record) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	switch f {
	case FormatCSV:
		err = WriteCSV(file, records)
	default:
		err = WriteJSON(file, records)
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
