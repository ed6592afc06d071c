package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dogedash/internal/core"
	applog "dogedash/internal/log"
	"dogedash/internal/table"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once templates are parsed and the data source
// answers its check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"templates": "ok", "source": "ok"}
	if s.readyCheck != nil {
		if err := s.readyCheck(ctx); err != nil {
			checks["source"] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"checks":     checks,
		"datasets":   s.svc.Statuses(),
		"requests":   s.tracer.GetMetrics(),
		"rate_limit": s.limiter.GetMetrics(),
		"security":   s.detector.GetMetrics(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "index.html", s.buildIndex())
}

// handleSection loads a dataset on first request and renders its section.
// The response also carries the refreshed summary as an out-of-band swap.
func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	kind, cfg, ok := s.partialKind(w, r)
	if !ok {
		return
	}

	sec, err := s.svc.Load(r.Context(), kind)
	if err != nil {
		s.logLoadError(r, kind, err)
		s.render(w, r, http.StatusBadGateway, "error", errorView{Slug: kind.String(), Message: loadFailedMessage(cfg)})
		return
	}

	s.render(w, r, http.StatusOK, "section", sectionView{
		Slug:    kind.String(),
		Section: sec,
		Table:   buildTable(kind, cfg, sec.Page, sec.Table),
		Summary: s.buildSummary(true),
	})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	kind, cfg, ok := s.partialKind(w, r)
	if !ok {
		return
	}

	q := table.ParseQuery(r.URL.Query(), cfg)
	page, html, err := s.svc.Table(r.Context(), kind, q)
	if err != nil {
		s.logLoadError(r, kind, err)
		s.render(w, r, http.StatusBadGateway, "error", errorView{Slug: kind.String(), Message: loadFailedMessage(cfg)})
		return
	}
	s.render(w, r, http.StatusOK, "table", buildTable(kind, cfg, page, html))
}

type summaryResponse struct {
	core.SummaryTotals
	LoadedInfo string `json:"loaded_info"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	totals := s.svc.Summary()
	if totals.LoadedDatasets == nil {
		totals.LoadedDatasets = []string{}
	}
	if totals.PerKind == nil {
		totals.PerKind = []core.KindStats{}
	}
	writeJSON(w, http.StatusOK, summaryResponse{SummaryTotals: totals, LoadedInfo: totals.LoadedInfo()})
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Statuses())
}

type topResponse struct {
	Kind  string           `json:"kind"`
	Group string           `json:"group"`
	Value string           `json:"value,omitempty"`
	Items []core.NameValue `json:"items"`
}

// handleTop ranks groups by summed value. An absent value parameter uses
// the kind's value field; an empty one ranks by record count.
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	kind, cfg, ok := s.apiKind(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	group := params.Get("group")
	if group == "" {
		group = cfg.AgencyField
	}
	value := cfg.ValueField
	if params.Has("value") {
		value = params.Get("value")
	}
	limit := defaultTopLimit
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTopLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxTopLimit))
			return
		}
		limit = n
	}

	items, err := s.svc.Top(r.Context(), kind, group, value, limit)
	if err != nil {
		s.logLoadError(r, kind, err)
		writeError(w, http.StatusBadGateway, loadFailedMessage(cfg))
		return
	}
	if items == nil {
		items = []core.NameValue{}
	}
	writeJSON(w, http.StatusOK, topResponse{Kind: kind.String(), Group: group, Value: value, Items: items})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	kind, cfg, ok := s.apiKind(w, r)
	if !ok {
		return
	}

	page, _, err := s.svc.Table(r.Context(), kind, table.ParseQuery(r.URL.Query(), cfg))
	if err != nil {
		s.logLoadError(r, kind, err)
		writeError(w, http.StatusBadGateway, loadFailedMessage(cfg))
		return
	}
	if page.Rows == nil {
		page.Rows = []core.Record{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// partialKind resolves {kind} for HTML routes, answering 404 with an error
// partial when it is unknown.
func (s *Server) partialKind(w http.ResponseWriter, r *http.Request) (core.Kind, core.KindConfig, bool) {
	kind, cfg, err := s.lookupKind(r)
	if err != nil {
		s.render(w, r, http.StatusNotFound, "error", errorView{Slug: r.PathValue("kind"), Message: "Unknown dataset."})
		return 0, core.KindConfig{}, false
	}
	return kind, cfg, true
}

func (s *Server) apiKind(w http.ResponseWriter, r *http.Request) (core.Kind, core.KindConfig, bool) {
	kind, cfg, err := s.lookupKind(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return 0, core.KindConfig{}, false
	}
	return kind, cfg, true
}

func (s *Server) lookupKind(r *http.Request) (core.Kind, core.KindConfig, error) {
	kind, err := core.ParseKind(r.PathValue("kind"))
	if err != nil {
		return 0, core.KindConfig{}, err
	}
	cfg, err := s.svc.Config(kind)
	return kind, cfg, err
}

func (s *Server) logLoadError(r *http.Request, kind core.Kind, err error) {
	errType := applog.ErrorTypeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		errType = applog.ErrorTypeTimeout
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Dataset load failed", err,
		applog.ComponentDataset, applog.OpLoad,
		applog.LogFields{applog.FieldKind: kind.String()}.WithErrorType(errType))
}

// render executes a template into a buffer first so a template failure
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldComponent, applog.ComponentTemplate,
			applog.FieldOperation, applog.OpRender,
			"template", name,
			applog.FieldError, err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
