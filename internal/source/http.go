package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"dogedash/internal/core"
	applog "dogedash/internal/log"
)

// HTTP fetches each dataset with a single GET against a static host.
type HTTP struct {
	base   *url.URL
	reg    *core.Registry
	client *http.Client
}

// NewHTTP resolves each kind's configured path against baseURL.
func NewHTTP(baseURL string, reg *core.Registry, client *http.Client) (*HTTP, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{base: base, reg: reg, client: client}, nil
}

// URLFor returns the address a kind is fetched from.
func (h *HTTP) URLFor(kind core.Kind) (string, error) {
	cfg, err := h.reg.Config(kind)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(cfg.Path)
	if err != nil {
		return "", fmt.Errorf("parse path for %s: %w", kind, err)
	}
	return h.base.ResolveReference(ref).String(), nil
}

// Fetch implements Fetcher.
func (h *HTTP) Fetch(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	u, err := h.URLFor(kind)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrFetchFailure, u, resp.StatusCode)
	}
	records, err := Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	slog.InfoContext(ctx, "Fetched dataset",
		applog.FieldComponent, applog.ComponentSource,
		applog.FieldKind, kind.String(),
		applog.FieldRecords, len(records),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return records, nil
}
