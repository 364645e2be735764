package locationshttp

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"digitaltwin-cloud/internal/eav"
	locations "digitaltwin-cloud/internal/locations/domain"
	locationspg "digitaltwin-cloud/internal/locations/infrastructure/postgres"
	"digitaltwin-cloud/internal/observability/metrics"
)

// Handler serves locations:
// POST /api/v1/locations                      create a location
// GET  /api/v1/locations?schema=...&<attr>=.  list locations by coordinates
type Handler struct {
	repo     *locationspg.Repository
	registry eav.Registry
	logger   *log.Logger
}

// NewHandler constructs a locations handler.
func NewHandler(repo *locationspg.Repository, registry eav.Registry, logger *log.Logger) (*Handler, error) {
	if repo == nil || registry == nil {
		return nil, errors.New("locations http: nil dependencies")
	}
	return &Handler{repo: repo, registry: registry, logger: logger}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Schema string         `json:"schema"`
		Values map[string]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.Schema == "" {
		http.Error(w, "schema is required", http.StatusBadRequest)
		return
	}

	// JSON numbers arrive as float64; coerce them for integer identifiers so
	// well-formed payloads do not trip the datatype check.
	values, err := coerceValues(r.Context(), h.registry, payload.Schema, payload.Values)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.repo.Create(r.Context(), payload.Schema, values)
	if err != nil {
		switch {
		case errors.Is(err, locations.ErrUnknownSchema),
			errors.Is(err, locations.ErrMissingIdentifier),
			errors.Is(err, eav.ErrUnknownAttribute),
			errors.Is(err, eav.ErrValueMismatch):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, eav.ErrDuplicateValue):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Printf("location create error: %v", err)
			http.Error(w, "create error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	schema := params.Get("schema")
	if schema == "" {
		http.Error(w, "schema is required", http.StatusBadRequest)
		return
	}

	limit := intParam(params.Get("limit"), 0)
	offset := intParam(params.Get("offset"), 0)

	attrs, err := h.registry.AttributesForGrouping(r.Context(), schema)
	if err != nil {
		h.logger.Printf("location list error: %v", err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	declared := make(map[string]eav.AttributeSpec, len(attrs))
	for _, attr := range attrs {
		declared[attr.Name] = attr
	}

	filters := make(map[string]any)
	for key, raw := range params {
		switch key {
		case "schema", "limit", "offset":
			continue
		}
		attr, ok := declared[key]
		if !ok {
			http.Error(w, "unknown identifier: "+key, http.StatusBadRequest)
			return
		}
		value, err := eav.ParseValue(attr.Datatype, raw[0])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filters[key] = value
	}

	done := metrics.ObserveEntityQuery("location")
	rows, err := h.repo.List(r.Context(), schema, filters, limit, offset)
	done(err)
	if err != nil {
		if errors.Is(err, eav.ErrUnknownAttribute) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Printf("location list error: %v", err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		item := map[string]any{"id": row.ID}
		for name, value := range row.Values {
			item[name] = value
		}
		items = append(items, item)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func coerceValues(ctx context.Context, registry eav.Registry, schema string, values map[string]any) (map[string]any, error) {
	attrs, err := registry.AttributesForGrouping(ctx, schema)
	if err != nil {
		return nil, err
	}
	declared := make(map[string]eav.AttributeSpec, len(attrs))
	for _, attr := range attrs {
		declared[attr.Name] = attr
	}
	coerced := make(map[string]any, len(values))
	for name, value := range values {
		if attr, ok := declared[name]; ok && attr.Datatype == eav.DatatypeInteger {
			if f, isFloat := value.(float64); isFloat && f == float64(int64(f)) {
				coerced[name] = int64(f)
				continue
			}
		}
		coerced[name] = value
	}
	return coerced, nil
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
