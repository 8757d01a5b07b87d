package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/RadteamBaoDA/ai4team-sub001/pkg/admission"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/allowlist"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/guard/cache"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/pipeline"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/proxy/middleware"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/ratelimit"
	"github.com/RadteamBaoDA/ai4team-sub001/pkg/telemetry/metrics"
)

// Handler serves the proxied inference endpoints. All enforcement happens
// in the pipeline; the handler parses requests, dispatches streaming vs
// buffered execution, and renders results.
type Handler struct {
	pipeline       *pipeline.Pipeline
	controller     *admission.Controller
	limiter        *ratelimit.Limiter
	store          cache.Store
	allow          func() *allowlist.Allowlist
	collector      *metrics.Collector
	requestTimeout time.Duration
	logger         *slog.Logger
}

// HandlerConfig carries the handler's collaborators. Collector may be nil.
type HandlerConfig struct {
	Pipeline       *pipeline.Pipeline
	Controller     *admission.Controller
	Limiter        *ratelimit.Limiter
	Store          cache.Store
	Allow          func() *allowlist.Allowlist
	Collector      *metrics.Collector
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewHandler creates the route handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pipeline:       cfg.Pipeline,
		controller:     cfg.Controller,
		limiter:        cfg.Limiter,
		store:          cfg.Store,
		allow:          cfg.Allow,
		collector:      cfg.Collector,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger.With("component", "proxy"),
	}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/generate", h.handleGenerate)
	mux.HandleFunc("/api/chat", h.handleChat)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/stats", h.handleStats)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	h.handleInference(w, r, parseGenerate)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	h.handleInference(w, r, parseChat)
}

func (h *Handler) handleInference(w http.ResponseWriter, r *http.Request, parse func([]byte) (*parsedRequest, error)) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeErrorObject(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeErrorObject(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	parsed, err := parse(body)
	if err != nil {
		writeErrorObject(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	req := &pipeline.Request{
		Path:     r.URL.Path,
		Payload:  body,
		Prompt:   parsed.Prompt,
		ClientID: middleware.GetClientIP(r.Context()),
	}

	if parsed.Stream {
		h.serveStream(w, r, req)
		return
	}
	h.serveBuffered(w, r, req)
}

func (h *Handler) serveBuffered(w http.ResponseWriter, r *http.Request, req *pipeline.Request) {
	ctx := r.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	body, err := h.pipeline.Execute(ctx, req)
	if err != nil {
		h.recordRejection(err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, req *pipeline.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorObject(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	// Headers are not sent until the first chunk, so rejections that
	// occur before any output still get a proper status.
	wrote := false
	err := h.pipeline.ExecuteStream(r.Context(), req, func(raw []byte) error {
		if !wrote {
			w.Header().Set("Content-Type", "application/x-ndjson")
			wrote = true
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err == nil {
		return
	}

	h.recordRejection(err)

	if !wrote {
		writeError(w, err)
		return
	}

	// Mid-stream: the status line is gone. A guard block has already
	// emitted its synthetic chunk; anything else can only be logged.
	var blocked *pipeline.BlockedError
	if !errors.As(err, &blocked) {
		h.logger.WarnContext(r.Context(), "stream aborted",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
}

func (h *Handler) recordRejection(err error) {
	if h.collector == nil {
		return
	}
	if reason := rejectionReason(err); reason != "" {
		h.collector.RecordAdmissionRejected(reason)
	}
	stats := h.controller.Stats()
	h.collector.SetAdmission(stats.Active, stats.Waiting)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleStats serves a point-in-time diagnostics snapshot.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot := map[string]any{
		"admission": h.controller.Stats(),
		"cache":     h.store.Stats(),
		"allowlist": h.allow().Stats(),
		"ratelimit": map[string]any{
			"clients": h.limiter.Clients(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
