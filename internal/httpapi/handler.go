// Package httpapi exposes schema-driven REST endpoints for entity CRUD.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"crudapi/internal/logging"
	"crudapi/internal/mutate"
	"crudapi/internal/naming"
	"crudapi/internal/observability"
	"crudapi/internal/schema"
	"crudapi/internal/service"
)

// Options tunes paging behavior for list endpoints.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// Handler serves the REST API routes derived from the entity schema.
type Handler struct {
	svc      *service.Service
	registry *schema.Registry
	namer    *naming.Namer
	logger   *logging.Logger
	metrics  *observability.CRUDMetrics
	opts     Options
}

// New creates a Handler over the given service and schema registry.
func New(svc *service.Service, registry *schema.Registry, namer *naming.Namer, logger *logging.Logger, metrics *observability.CRUDMetrics, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 100
	}
	return &Handler{
		svc:      svc,
		registry: registry,
		namer:    namer,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Register mounts one route set per entity on the mux.
// Each entity gets /api/<collection> and /api/<collection>/{id}.
func (h *Handler) Register(mux *http.ServeMux) {
	for _, entity := range h.registry.Entities() {
		name := entity.Name
		base := "/api/" + h.namer.Collection(name)

		mux.HandleFunc("POST "+base, h.create(name))
		mux.HandleFunc("GET "+base, h.list(name))
		mux.HandleFunc("GET "+base+"/{id}", h.get(name))
		mux.HandleFunc("PATCH "+base+"/{id}", h.update(name))
		mux.HandleFunc("DELETE "+base+"/{id}", h.delete(name))
	}
}

func (h *Handler) create(entity string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		body, err := decodeBody(r)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, err)
			h.record(r, start, true, "create")
			return
		}

		record, err := h.svc.Create(r.Context(), entity, body)
		if err != nil {
			h.writeServiceError(w, r, err)
			h.record(r, start, true, "create")
			return
		}

		h.writeJSON(w, http.StatusCreated, map[string]any{"data": record})
		h.record(r, start, false, "create")
	}
}

func (h *Handler) get(entity string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		record, err := h.svc.Get(r.Context(), entity, r.PathValue("id"))
		if err != nil {
			h.writeServiceError(w, r, err)
			h.record(r, start, true, "get")
			return
		}

		h.writeJSON(w, http.StatusOK, map[string]any{"data": record})
		h.record(r, start, false, "get")
	}
}

func (h *Handler) list(entity string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		limit, offset, err := h.pageParams(r)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, err)
			h.record(r, start, true, "list")
			return
		}

		records, err := h.svc.List(r.Context(), entity, limit, offset)
		if err != nil {
			h.writeServiceError(w, r, err)
			h.record(r, start, true, "list")
			return
		}

		if h.metrics != nil {
			h.metrics.RecordResultsCount(r.Context(), int64(len(records)), entity)
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"data": records})
		h.record(r, start, false, "list")
	}
}

func (h *Handler) update(entity string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		body, err := decodeBody(r)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, err)
			h.record(r, start, true, "update")
			return
		}

		record, err := h.svc.Update(r.Context(), entity, r.PathValue("id"), body)
		if err != nil {
			h.writeServiceError(w, r, err)
			h.record(r, start, true, "update")
			return
		}

		h.writeJSON(w, http.StatusOK, map[string]any{"data": record})
		h.record(r, start, false, "update")
	}
}

func (h *Handler) delete(entity string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if err := h.svc.Delete(r.Context(), entity, r.PathValue("id")); err != nil {
			h.writeServiceError(w, r, err)
			h.record(r, start, true, "delete")
			return
		}

		w.WriteHeader(http.StatusNoContent)
		h.record(r, start, false, "delete")
	}
}

func (h *Handler) pageParams(r *http.Request) (limit, offset uint64, err error) {
	limit = uint64(h.opts.DefaultLimit)

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.ParseUint(raw, 10, 32)
		if err != nil || limit == 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
	}
	if h.opts.MaxLimit > 0 && limit > uint64(h.opts.MaxLimit) {
		limit = uint64(h.opts.MaxLimit)
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
	}

	return limit, offset, nil
}

func decodeBody(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()

	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return normalizeNumbers(body).(map[string]any), nil
}

// normalizeNumbers converts json.Number values into int64 when integral,
// float64 otherwise, so downstream comparisons see plain Go numbers.
func normalizeNumbers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, item := range v {
			v[key] = normalizeNumbers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeNumbers(item)
		}
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		return value
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUnknownEntity):
		h.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, service.ErrConflict):
		h.writeError(w, r, http.StatusConflict, err)
	case service.IsResolutionError(err),
		errors.Is(err, mutate.ErrInvalidAction),
		errors.Is(err, mutate.ErrMisplacedAction),
		errors.Is(err, mutate.ErrNoUniqueIdentifier):
		h.writeError(w, r, http.StatusBadRequest, err)
	default:
		logging.FromContext(r.Context()).Error("request failed", "error", err.Error())
		h.writeError(w, r, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": err.Error(),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err.Error())
	}
}

func (h *Handler) record(r *http.Request, start time.Time, hasErrors bool, operation string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(r.Context(), time.Since(start), hasErrors, operation)
}
