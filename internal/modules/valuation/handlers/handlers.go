// Package handlers provides HTTP handlers for valuation runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aristath/valuation/internal/modules/valuation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// RunReader reads stored valuation runs
type RunReader interface {
	Get(ctx context.Context, id string) (*valuation.Run, error)
	List(ctx context.Context, limit int) ([]valuation.Run, error)
}

// Handler handles valuation HTTP requests
type Handler struct {
	service  *valuation.Service
	runs     RunReader
	defaults valuation.Request
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// NewHandler creates a new valuation handler.
// defaults supplies every value a request does not override; limiter may be nil.
func NewHandler(
	service *valuation.Service,
	runs RunReader,
	defaults valuation.Request,
	limiter *rate.Limiter,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		runs:     runs,
		defaults: defaults,
		limiter:  limiter,
		log:      log.With().Str("handler", "valuation").Logger(),
	}
}

// SolveRequest overrides the configured inputs and sampler params.
// Absent fields keep their configured value.
type SolveRequest struct {
	Revenue          *float64 `json:"revenue,omitempty"`
	Assets           *float64 `json:"assets,omitempty"`
	Liabilities      *float64 `json:"liabilities,omitempty"`
	ScaleDivisor     *float64 `json:"scale_divisor,omitempty"`
	Bits             *int     `json:"bits,omitempty"`
	Alpha            *float64 `json:"alpha,omitempty"`
	Beta             *float64 `json:"beta,omitempty"`
	Gamma            *float64 `json:"gamma,omitempty"`
	Threshold        *float64 `json:"threshold,omitempty"`
	LargePenalty     *float64 `json:"large_penalty,omitempty"`
	ThresholdPenalty *float64 `json:"threshold_penalty,omitempty"`
	NumReads         *int     `json:"num_reads,omitempty"`
	Sweeps           *int     `json:"sweeps,omitempty"`
	TMax             *float64 `json:"t_max,omitempty"`
	TMin             *float64 `json:"t_min,omitempty"`
	Seed             *uint64  `json:"seed,omitempty"`
}

// apply returns base with the overrides of sr applied
func (sr SolveRequest) apply(base valuation.Request) valuation.Request {
	req := base
	in := &req.Inputs
	p := &req.Params

	setFloat(&in.Financials.Revenue, sr.Revenue)
	setFloat(&in.Financials.Assets, sr.Assets)
	setFloat(&in.Financials.Liabilities, sr.Liabilities)
	setFloat(&in.ScaleDivisor, sr.ScaleDivisor)
	setInt(&in.Bits, sr.Bits)
	setFloat(&in.Alpha, sr.Alpha)
	setFloat(&in.Beta, sr.Beta)
	setFloat(&in.Gamma, sr.Gamma)
	setFloat(&in.Threshold, sr.Threshold)
	setFloat(&in.LargePenalty, sr.LargePenalty)
	setFloat(&in.ThresholdPenalty, sr.ThresholdPenalty)
	setInt(&p.NumReads, sr.NumReads)
	setInt(&p.Sweeps, sr.Sweeps)
	setFloat(&p.TMax, sr.TMax)
	setFloat(&p.TMin, sr.TMin)
	if sr.Seed != nil {
		p.Seed = *sr.Seed
	}
	p.OnSample = nil

	return req
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// parseQuery reads overrides from query parameters named like the JSON fields
func parseQuery(q url.Values) (SolveRequest, error) {
	var sr SolveRequest
	floats := map[string]**float64{
		"revenue":           &sr.Revenue,
		"assets":            &sr.Assets,
		"liabilities":       &sr.Liabilities,
		"scale_divisor":     &sr.ScaleDivisor,
		"alpha":             &sr.Alpha,
		"beta":              &sr.Beta,
		"gamma":             &sr.Gamma,
		"threshold":         &sr.Threshold,
		"large_penalty":     &sr.LargePenalty,
		"threshold_penalty": &sr.ThresholdPenalty,
		"t_max":             &sr.TMax,
		"t_min":             &sr.TMin,
	}
	for key, dst := range floats {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return sr, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = &v
	}

	ints := map[string]**int{
		"bits":      &sr.Bits,
		"num_reads": &sr.NumReads,
		"sweeps":    &sr.Sweeps,
	}
	for key, dst := range ints {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return sr, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = &v
	}

	if raw := q.Get("seed"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return sr, fmt.Errorf("invalid seed: %w", err)
		}
		sr.Seed = &v
	}

	return sr, nil
}

// validate checks a resolved request before it reaches the service
func validate(req valuation.Request) error {
	if err := req.Inputs.Validate(); err != nil {
		return err
	}
	return req.Params.Validate()
}

// HandleSolve handles POST /api/valuation/solve
func (h *Handler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w) {
		return
	}

	var sr SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&sr); err != nil && !errors.Is(err, io.EOF) {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req := sr.apply(h.defaults)
	if err := validate(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Valuate(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Valuation failed")
		http.Error(w, "Valuation failed", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, result)
}

// HandleGetQUBO handles GET /api/valuation/qubo
func (h *Handler) HandleGetQUBO(w http.ResponseWriter, r *http.Request) {
	sr, err := parseQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := sr.apply(h.defaults)
	model, err := h.service.Preview(req.Inputs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"encoder":   req.Inputs.EncoderConfig(),
		"variables": model.Variables(),
		"entries":   model.Table(),
	})
}

// HandleListRuns handles GET /api/valuation/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(v, maxRunsLimit)
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list valuation runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []valuation.Run{}
	}

	h.writeData(w, http.StatusOK, runs)
}

// HandleGetRun handles GET /api/valuation/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.runs.Get(r.Context(), id)
	if errors.Is(err, valuation.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to load valuation run")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, run)
}

// allow applies the solve rate limit, writing 429 when exhausted
func (h *Handler) allow(w http.ResponseWriter) bool {
	if h.limiter == nil || h.limiter.Allow() {
		return true
	}
	w.Header().Set("Retry-After", "1")
	http.Error(w, "Too many valuation requests", http.StatusTooManyRequests)
	return false
}

// writeData writes data inside the standard response envelope
func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
