package registryhttp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"digitaltwin-cloud/internal/audit"
	"digitaltwin-cloud/internal/auth"
	"digitaltwin-cloud/internal/eav"
	registry "digitaltwin-cloud/internal/registry/domain"
)

// CatalogHandler serves one grouping/attribute registry over HTTP:
// GET  {prefix}                      list groupings
// POST {prefix}                      create a grouping with its attributes
// GET  {prefix}/{name}/attributes    list declared attributes
type CatalogHandler struct {
	catalog  registry.Catalog
	resource string
	prefix   string
	auditor  audit.Logger
	logger   *log.Logger
}

// NewCatalogHandler constructs a handler for the registry mounted at prefix.
func NewCatalogHandler(catalog registry.Catalog, resource, prefix string, auditor audit.Logger, logger *log.Logger) (*CatalogHandler, error) {
	if catalog == nil {
		return nil, errors.New("registry http: nil catalog")
	}
	if prefix == "" || !strings.HasPrefix(prefix, "/") {
		return nil, errors.New("registry http: invalid prefix")
	}
	return &CatalogHandler{
		catalog:  catalog,
		resource: resource,
		prefix:   strings.TrimSuffix(prefix, "/"),
		auditor:  auditor,
		logger:   logger,
	}, nil
}

type attributePayload struct {
	Name     string `json:"name"`
	Units    string `json:"units,omitempty"`
	Datatype string `json:"datatype"`
}

type groupingPayload struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Attributes  []attributePayload `json:"attributes"`
}

func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, h.prefix)
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.listGroupings(w, r)
	case rest == "" && r.Method == http.MethodPost:
		h.createGrouping(w, r)
	case strings.HasSuffix(rest, "/attributes") && r.Method == http.MethodGet:
		name := strings.TrimSuffix(rest, "/attributes")
		h.listAttributes(w, r, name)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) listGroupings(w http.ResponseWriter, r *http.Request) {
	groupings, err := h.catalog.Groupings(r.Context())
	if err != nil {
		h.logger.Printf("%s list error: %v", h.resource, err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	type item struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	items := make([]item, 0, len(groupings))
	for _, g := range groupings {
		items = append(items, item{ID: g.ID, Name: g.Name, Description: g.Description})
	}
	writeJSON(w, items)
}

func (h *CatalogHandler) createGrouping(w http.ResponseWriter, r *http.Request) {
	var payload groupingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	groupingID, err := h.catalog.EnsureGrouping(ctx, payload.Name, payload.Description)
	if err != nil {
		h.logger.Printf("%s create error: %v", h.resource, err)
		http.Error(w, "create error", http.StatusInternalServerError)
		return
	}
	for _, attr := range payload.Attributes {
		datatype, err := eav.ParseDatatype(attr.Datatype)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		attributeID, err := h.catalog.EnsureAttribute(ctx, attr.Name, attr.Units, datatype)
		if err != nil {
			h.logger.Printf("%s attribute error: %v", h.resource, err)
			http.Error(w, "create error", http.StatusInternalServerError)
			return
		}
		if err := h.catalog.LinkAttribute(ctx, groupingID, attributeID); err != nil {
			h.logger.Printf("%s link error: %v", h.resource, err)
			http.Error(w, "create error", http.StatusInternalServerError)
			return
		}
	}

	if h.auditor != nil {
		metadata, _ := json.Marshal(payload)
		_ = h.auditor.Log(ctx, audit.Entry{
			Actor:        auth.SubjectFromContext(ctx),
			Role:         string(auth.RoleFromContext(ctx)),
			Action:       "create",
			ResourceType: h.resource,
			ResourceID:   payload.Name,
			Metadata:     metadata,
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": groupingID, "name": payload.Name})
}

func (h *CatalogHandler) listAttributes(w http.ResponseWriter, r *http.Request, name string) {
	attrs, err := h.catalog.AttributesForGrouping(r.Context(), name)
	if err != nil {
		h.logger.Printf("%s attributes error: %v", h.resource, err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	items := make([]attributePayload, 0, len(attrs))
	for _, attr := range attrs {
		items = append(items, attributePayload{Name: attr.Name, Units: attr.Units, Datatype: string(attr.Datatype)})
	}
	writeJSON(w, items)
}

// MeasuresHandler serves GET /api/v1/measures: the full catalog join of
// groupings to attributes, one row per declared pair.
type MeasuresHandler struct {
	catalog registry.Catalog
	logger  *log.Logger
}

// NewMeasuresHandler constructs a MeasuresHandler.
func NewMeasuresHandler(catalog registry.Catalog, logger *log.Logger) *MeasuresHandler {
	return &MeasuresHandler{catalog: catalog, logger: logger}
}

func (h *MeasuresHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries, err := h.catalog.Entries(r.Context())
	if err != nil {
		h.logger.Printf("measures list error: %v", err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	type item struct {
		TypeID          int64  `json:"type_id"`
		TypeName        string `json:"type_name"`
		MeasureID       int64  `json:"measure_id"`
		MeasureName     string `json:"measure_name"`
		MeasureUnits    string `json:"measure_units,omitempty"`
		MeasureDatatype string `json:"measure_datatype"`
	}
	items := make([]item, 0, len(entries))
	for _, entry := range entries {
		items = append(items, item{
			TypeID:          entry.GroupingID,
			TypeName:        entry.GroupingName,
			MeasureID:       entry.AttributeID,
			MeasureName:     entry.Attribute,
			MeasureUnits:    entry.Units,
			MeasureDatatype: string(entry.Datatype),
		})
	}
	writeJSON(w, items)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
