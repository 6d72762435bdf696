// Package http provides the HTTP surface of the billing gate service.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/arvend/tokengate/adapters/metrics"
	"github.com/arvend/tokengate/app"
	"github.com/arvend/tokengate/domain/access"
	"github.com/arvend/tokengate/domain/cost"
	"github.com/arvend/tokengate/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Version is stamped by the build.
var Version = "dev"

// Handler serves the billing and cost accounting API.
type Handler struct {
	guard   *app.Guard
	costs   *app.CostService
	display *app.DisplayService
	logger  zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(guard *app.Guard, costs *app.CostService, display *app.DisplayService, logger zerolog.Logger) *Handler {
	return &Handler{
		guard:   guard,
		costs:   costs,
		display: display,
		logger:  logger,
	}
}

// SubscriptionStatus resolves the caller's access decision. refresh=1
// forces a fresh provider round-trip with the loading floor applied.
func (h *Handler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	var st app.GuardStatus
	if r.URL.Query().Get("refresh") == "1" {
		st = h.guard.Recheck(r.Context(), id)
	} else {
		st = h.guard.Resolve(r.Context(), id)
	}
	writeJSON(w, http.StatusOK, st.Result)
}

// displayConfigResponse is the client bootstrap payload.
type displayConfigResponse struct {
	SecondaryCurrency string `json:"secondaryCurrency"`
	CompareModel      string `json:"compareModel,omitempty"`
}

// DisplayConfig exposes the knobs the chat client needs to render
// costs without hardcoding them.
func (h *Handler) DisplayConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, displayConfigResponse{
		SecondaryCurrency: h.display.Secondary(),
		CompareModel:      h.display.CompareModel(),
	})
}

// ModelRates returns the price table, or one model's rate when the
// model query parameter is set.
func (h *Handler) ModelRates(w http.ResponseWriter, r *http.Request) {
	if model := r.URL.Query().Get("model"); model != "" {
		rate, ok, err := h.costs.RateFor(r.Context(), model)
		if err != nil {
			writeError(w, http.StatusBadGateway, "pricing_unavailable", err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "unknown_model", "no rate for model "+model)
			return
		}
		writeJSON(w, http.StatusOK, rate)
		return
	}

	table, err := h.costs.Rates(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "pricing_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// currencyRateResponse is the conversion quote payload.
type currencyRateResponse struct {
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"`
}

// CurrencyRate returns the USD conversion rate for the requested
// currency, defaulting to the configured secondary.
func (h *Handler) CurrencyRate(w http.ResponseWriter, r *http.Request) {
	ccy := strings.ToUpper(r.URL.Query().Get("currency"))
	if ccy == "" {
		ccy = h.display.Secondary()
	}
	rate, err := h.display.ConversionRate(r.Context(), ccy)
	if err != nil {
		writeError(w, http.StatusBadGateway, "rate_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, currencyRateResponse{Currency: ccy, Rate: rate})
}

// usageRequest is the finalization payload posted when a model
// response completes.
type usageRequest struct {
	Model           string `json:"model"`
	InputTokens     int64  `json:"inputTokens"`
	OutputTokens    int64  `json:"outputTokens"`
	ReasoningTokens int64  `json:"reasoningTokens"`
}

// RecordUsage snapshots the token usage of a finished message. The
// write is first-wins, so retries are safe.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	if messageID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "message id required")
		return
	}

	var req usageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid usage payload")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "model required")
		return
	}

	usage := cost.Usage{
		InputTokens:     req.InputTokens,
		OutputTokens:    req.OutputTokens,
		ReasoningTokens: req.ReasoningTokens,
	}
	snap, err := h.costs.RecordNow(r.Context(), messageID, req.Model, usage)
	if err != nil {
		h.logger.Error().Err(err).Str("message_id", messageID).Msg("usage record failed")
		writeError(w, http.StatusInternalServerError, "persist_failed", "could not record usage")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// MessageCost renders the persisted cost of a message in the requested
// currency.
func (h *Handler) MessageCost(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	snap, err := h.costs.Snapshot(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, ports.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no usage recorded for message")
			return
		}
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	locked := true
	if snap.IsEmpty() {
		// Rates were unknown at recording time. Re-price the persisted
		// counts with the current table; locked stays false since the
		// figure could still move.
		if est, err := h.costs.Estimate(r.Context(), snap.Model, snap.Usage); err == nil && !est.IsEmpty() {
			snap = est
			locked = false
		}
	}

	view := h.display.View(r.Context(), snap, locked, r.URL.Query().Get("currency"))
	writeJSON(w, http.StatusOK, view)
}

// estimateRequest prices usage that has not finished streaming yet.
type estimateRequest struct {
	Model           string `json:"model"`
	InputTokens     int64  `json:"inputTokens"`
	OutputTokens    int64  `json:"outputTokens"`
	ReasoningTokens int64  `json:"reasoningTokens"`
	Currency        string `json:"currency"`
}

// EstimateCost prices in-flight usage with current rates. Not locked:
// the final persisted cost may differ if prices move.
func (h *Handler) EstimateCost(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid estimate payload")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "model required")
		return
	}

	snap, err := h.costs.Estimate(r.Context(), req.Model, cost.Usage{
		InputTokens:     req.InputTokens,
		OutputTokens:    req.OutputTokens,
		ReasoningTokens: req.ReasoningTokens,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "pricing_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.display.View(r.Context(), snap, false, req.Currency))
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checks map[string]HealthChecker
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f HealthCheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// NewHealthHandler creates a health handler over named dependency
// checks.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness probes every registered dependency.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, c := range h.checks {
		if err := c.HealthCheck(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "unhealthy",
			"failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// versionResponse is the version endpoint payload.
type versionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: Version, Service: "tokengate"})
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // Prometheus exporter mounted at /metrics
	Authenticator  Authenticator
	Health         *HealthHandler
}

// NewRouter assembles the API routes with the standard middleware
// stack.
func NewRouter(h *Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil)
	}
	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", versionHandler)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.Authenticator != nil {
			api.Use(NewSessionMiddleware(cfg.Authenticator, logger))
		}

		api.Get("/billing/subscription-status", h.SubscriptionStatus)
		api.Get("/billing/display-config", h.DisplayConfig)
		api.Get("/models/rates", h.ModelRates)
		api.Get("/currency/rate", h.CurrencyRate)

		api.Route("/messages/{messageID}", func(msg chi.Router) {
			msg.With(NewGateMiddleware(h.guard)).Post("/usage", h.RecordUsage)
			msg.Get("/cost", h.MessageCost)
		})
		api.With(NewGateMiddleware(h.guard)).Post("/costs/estimate", h.EstimateCost)
	})

	return r
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// IdentityFrom extracts the authenticated identity from ctx.
func IdentityFrom(ctx context.Context) (access.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(access.Identity)
	return id, ok
}
