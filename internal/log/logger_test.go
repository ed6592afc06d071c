package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONHandlerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentDataset, Handler: NewHandler(&buf, slog.LevelInfo, "json")})

	logger.Info("Dataset loaded", FieldKind, "grants", FieldRecords, 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry[FieldComponent] != ComponentDataset {
		t.Errorf("component = %v, want %s", entry[FieldComponent], ComponentDataset)
	}
	if entry[FieldKind] != "grants" {
		t.Errorf("kind = %v", entry[FieldKind])
	}
}

func TestTextHandlerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentApp, Handler: NewHandler(&buf, slog.LevelWarn, "text")})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().WithComponent(ComponentHTTP).WithDataset("leases", 7).WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Error("nil error must not add a field")
	}
	if f[FieldRecords] != 7 || f[FieldKind] != "leases" {
		t.Errorf("fields = %v", f)
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice length mismatch")
	}
}

func TestFromContextAndLogError(t *testing.T) {
	if got := FromContext(context.Background()); got == nil || got.Logger == nil {
		t.Fatal("FromContext without a logger must fall back to the default")
	}

	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, slog.LevelInfo, "json")})
	ctx := context.WithValue(context.Background(), LoggerContextKey, logger)

	NewStructuredLogger(FromContext(ctx)).LogError(ctx, "Dataset load failed", errors.New("boom"),
		ComponentDataset, OpLoad, LogFields{FieldKind: "grants"}.WithErrorType(ErrorTypeNetwork))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	want := map[string]any{
		FieldComponent: ComponentDataset,
		FieldOperation: OpLoad,
		FieldError:     "boom",
		FieldErrorType: ErrorTypeNetwork,
		FieldKind:      "grants",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}
