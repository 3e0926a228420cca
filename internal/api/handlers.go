package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/metrics"
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/rules"
)

// maxBodyBytes bounds preview request bodies.
const maxBodyBytes = 1 << 20

// RuleReader is the read side of the rule store.
type RuleReader interface {
	ListRules(ctx context.Context) ([]model.Rule, error)
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
}

// Previewer runs a dry classification.
type Previewer interface {
	Preview(ctx context.Context, bag model.FieldBag) (rules.Result, error)
}

// Handler holds the HTTP handlers.
type Handler struct {
	rules     RuleReader
	previewer Previewer
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewHandler creates a Handler. collector may be nil, in which case /metrics is not served.
func NewHandler(rules RuleReader, previewer Previewer, collector *metrics.Collector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		rules:     rules,
		previewer: previewer,
		metrics:   collector,
		logger:    logger,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListRules returns every rule in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	all, err := h.rules.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(all))
	for i, rule := range all {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRule returns one rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule ID", err)
		return
	}

	rule, err := h.rules.GetRule(r.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Rule not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}

// Preview classifies the posted fields without persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields are required", nil)
		return
	}

	res, err := h.previewer.Preview(r.Context(), req.Fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to classify", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewResponse(res))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// requestLogger logs each request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
