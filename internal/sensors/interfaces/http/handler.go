package sensorshttp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"digitaltwin-cloud/internal/eav"
	"digitaltwin-cloud/internal/observability/metrics"
	sensors "digitaltwin-cloud/internal/sensors/domain"
	"digitaltwin-cloud/internal/sensors/interfaces"
	sensorspg "digitaltwin-cloud/internal/sensors/infrastructure/postgres"
)

// Handler serves sensors:
// POST /api/v1/sensors              register a sensor
// GET  /api/v1/sensors?type=...     list sensors of a type
type Handler struct {
	repo   *sensorspg.Repository
	logger *log.Logger
}

// NewHandler constructs a sensors handler.
func NewHandler(repo *sensorspg.Repository, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("sensors http: nil repository")
	}
	return &Handler{repo: repo, logger: logger}, nil
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
		Type             string `json:"type"`
		UniqueIdentifier string `json:"unique_identifier"`
		Name             string `json:"name"`
		Notes            string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.Type == "" || payload.UniqueIdentifier == "" {
		http.Error(w, "type and unique_identifier are required", http.StatusBadRequest)
		return
	}

	id, err := h.repo.Create(r.Context(), payload.Type, payload.UniqueIdentifier, payload.Name, payload.Notes)
	if err != nil {
		switch {
		case errors.Is(err, sensors.ErrUnknownType):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, sensors.ErrDuplicateSensor):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Printf("sensor create error: %v", err)
			http.Error(w, "create error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	typeName := r.URL.Query().Get("type")
	if typeName == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}

	items, err := h.repo.List(r.Context(), typeName)
	if err != nil {
		h.logger.Printf("sensor list error: %v", err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, s := range items {
		out = append(out, map[string]any{
			"id":                s.ID,
			"type_id":           s.TypeID,
			"unique_identifier": s.UniqueIdentifier,
			"name":              s.Name,
			"notes":             s.Notes,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// ReadingsHandler serves readings:
// POST /api/v1/sensors/readings     ingest a batch of readings
// GET  /api/v1/sensors/readings?sensor_id=&measure=&from=&to=
type ReadingsHandler struct {
	repo   *sensorspg.Repository
	query  *sensorspg.ReadingQuery
	logger *log.Logger
}

// NewReadingsHandler constructs a readings handler.
func NewReadingsHandler(repo *sensorspg.Repository, query *sensorspg.ReadingQuery, logger *log.Logger) (*ReadingsHandler, error) {
	if repo == nil || query == nil {
		return nil, errors.New("sensors http: nil dependencies")
	}
	return &ReadingsHandler{repo: repo, query: query, logger: logger}, nil
}

func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.queryReadings(w, r)
	case http.MethodPost:
		h.ingest(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *ReadingsHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SensorID int64 `json:"sensor_id"`
		Readings []struct {
			Measure   string `json:"measure"`
			Timestamp string `json:"timestamp"`
			Value     any    `json:"value"`
		} `json:"readings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		metrics.CountIngestError("bad_json")
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.SensorID == 0 || len(payload.Readings) == 0 {
		metrics.CountIngestError("bad_payload")
		http.Error(w, "sensor_id and readings are required", http.StatusBadRequest)
		return
	}

	declared, err := h.repo.DeclaredMeasures(r.Context(), payload.SensorID)
	if err != nil {
		if errors.Is(err, sensors.ErrUnknownSensor) {
			metrics.CountIngestError("unknown_sensor")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Printf("reading ingest error: %v", err)
		http.Error(w, "ingest error", http.StatusInternalServerError)
		return
	}
	datatypes := make(map[string]eav.Datatype, len(declared))
	for _, attr := range declared {
		datatypes[attr.Name] = attr.Datatype
	}

	batch := make([]sensors.Reading, 0, len(payload.Readings))
	for _, raw := range payload.Readings {
		ts, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			metrics.CountIngestError("bad_timestamp")
			http.Error(w, "timestamp must be RFC3339", http.StatusBadRequest)
			return
		}
		value := raw.Value
		// JSON numbers arrive as float64; coerce them for integer measures.
		if datatypes[raw.Measure] == eav.DatatypeInteger {
			if f, isFloat := value.(float64); isFloat && f == float64(int64(f)) {
				value = int64(f)
			}
		}
		batch = append(batch, sensors.Reading{Measure: raw.Measure, Timestamp: ts, Value: value})
	}

	start := time.Now()
	err = h.repo.InsertReadings(r.Context(), payload.SensorID, batch)
	metrics.ObserveIngest(len(batch), err, time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, eav.ErrUnknownAttribute):
			metrics.CountIngestError("unknown_measure")
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, eav.ErrValueMismatch):
			metrics.CountIngestError("bad_value")
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, eav.ErrDuplicateValue):
			metrics.CountIngestError("duplicate")
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Printf("reading ingest error: %v", err)
			http.Error(w, "ingest error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]int{"accepted": len(batch)})
}

func (h *ReadingsHandler) queryReadings(w http.ResponseWriter, r *http.Request) {
	sensorID, measure, from, to, ok := readingParams(w, r)
	if !ok {
		return
	}

	done := metrics.ObserveEntityQuery("sensor")
	readings, err := h.query.ReadingsBetween(r.Context(), sensorID, measure, from, to)
	done(err)
	if err != nil {
		switch {
		case errors.Is(err, sensors.ErrUnknownSensor), errors.Is(err, eav.ErrUnknownAttribute):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Printf("reading query error: %v", err)
			http.Error(w, "query error", http.StatusInternalServerError)
		}
		return
	}

	items := make([]map[string]any, 0, len(readings))
	for _, reading := range readings {
		items = append(items, map[string]any{
			"timestamp": reading.Timestamp.Format(time.RFC3339),
			"value":     reading.Value,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// ExportHandler serves GET /api/v1/sensors/exports/readings.xlsx.
type ExportHandler struct {
	repo   *sensorspg.Repository
	query  *sensorspg.ReadingQuery
	logger *log.Logger
}

// NewExportHandler constructs an export handler.
func NewExportHandler(repo *sensorspg.Repository, query *sensorspg.ReadingQuery, logger *log.Logger) (*ExportHandler, error) {
	if repo == nil || query == nil {
		return nil, errors.New("sensors http: nil dependencies")
	}
	return &ExportHandler{repo: repo, query: query, logger: logger}, nil
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sensorID, measure, from, to, ok := readingParams(w, r)
	if !ok {
		return
	}

	sensor, err := h.repo.ByID(r.Context(), sensorID)
	if err != nil {
		if errors.Is(err, sensors.ErrUnknownSensor) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Printf("reading export error: %v", err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}

	readings, err := h.query.ReadingsBetween(r.Context(), sensorID, measure, from, to)
	if err != nil {
		switch {
		case errors.Is(err, sensors.ErrUnknownSensor), errors.Is(err, eav.ErrUnknownAttribute):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Printf("reading export error: %v", err)
			http.Error(w, "export error", http.StatusInternalServerError)
		}
		return
	}

	payload, err := interfaces.BuildReadingsXLSX(sensor, measure, readings)
	if err != nil {
		h.logger.Printf("reading export error: %v", err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}

	metrics.CountExport("readings_xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="readings.xlsx"`)
	_, _ = w.Write(payload)
}

// InstallationsHandler serves sensor placements:
// POST /api/v1/sensors/installations                 record an installation
// GET  /api/v1/sensors/installations?sensor_id=...   placement history
type InstallationsHandler struct {
	repo   *sensorspg.Repository
	logger *log.Logger
}

// NewInstallationsHandler constructs an installations handler.
func NewInstallationsHandler(repo *sensorspg.Repository, logger *log.Logger) (*InstallationsHandler, error) {
	if repo == nil {
		return nil, errors.New("sensors http: nil repository")
	}
	return &InstallationsHandler{repo: repo, logger: logger}, nil
}

func (h *InstallationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.history(w, r)
	case http.MethodPost:
		h.record(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *InstallationsHandler) record(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SensorID    int64  `json:"sensor_id"`
		LocationID  int64  `json:"location_id"`
		InstalledAt string `json:"installed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.SensorID == 0 || payload.LocationID == 0 {
		http.Error(w, "sensor_id and location_id are required", http.StatusBadRequest)
		return
	}
	var installedAt time.Time
	if payload.InstalledAt != "" {
		parsed, err := time.Parse(time.RFC3339, payload.InstalledAt)
		if err != nil {
			http.Error(w, "installed_at must be RFC3339", http.StatusBadRequest)
			return
		}
		installedAt = parsed
	}

	if err := h.repo.AssignLocation(r.Context(), payload.SensorID, payload.LocationID, installedAt); err != nil {
		h.logger.Printf("installation record error: %v", err)
		http.Error(w, "record error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *InstallationsHandler) history(w http.ResponseWriter, r *http.Request) {
	sensorID, err := strconv.ParseInt(r.URL.Query().Get("sensor_id"), 10, 64)
	if err != nil || sensorID <= 0 {
		http.Error(w, "sensor_id is required", http.StatusBadRequest)
		return
	}

	history, err := h.repo.LocationHistory(r.Context(), sensorID)
	if err != nil {
		h.logger.Printf("installation history error: %v", err)
		http.Error(w, "history error", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(history))
	for _, inst := range history {
		items = append(items, map[string]any{
			"sensor_id":    inst.SensorID,
			"location_id":  inst.LocationID,
			"installed_at": inst.InstalledAt.Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

func readingParams(w http.ResponseWriter, r *http.Request) (sensorID int64, measure string, from, to time.Time, ok bool) {
	params := r.URL.Query()
	sensorID, err := strconv.ParseInt(params.Get("sensor_id"), 10, 64)
	if err != nil || sensorID <= 0 {
		http.Error(w, "sensor_id is required", http.StatusBadRequest)
		return 0, "", time.Time{}, time.Time{}, false
	}
	measure = params.Get("measure")
	if measure == "" {
		http.Error(w, "measure is required", http.StatusBadRequest)
		return 0, "", time.Time{}, time.Time{}, false
	}
	from, err = time.Parse(time.RFC3339, params.Get("from"))
	if err != nil {
		http.Error(w, "from must be RFC3339", http.StatusBadRequest)
		return 0, "", time.Time{}, time.Time{}, false
	}
	to, err = time.Parse(time.RFC3339, params.Get("to"))
	if err != nil {
		http.Error(w, "to must be RFC3339", http.StatusBadRequest)
		return 0, "", time.Time{}, time.Time{}, false
	}
	return sensorID, measure, from, to, true
}
