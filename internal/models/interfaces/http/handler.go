package modelshttp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"digitaltwin-cloud/internal/eav"
	models "digitaltwin-cloud/internal/models/domain"
	"digitaltwin-cloud/internal/models/interfaces"
	modelspg "digitaltwin-cloud/internal/models/infrastructure/postgres"
	"digitaltwin-cloud/internal/observability/metrics"
)

// Handler serves the model catalog:
// POST /api/v1/models    register a model
type Handler struct {
	repo   *modelspg.Repository
	logger *log.Logger
}

// NewHandler constructs a models handler.
func NewHandler(repo *modelspg.Repository, logger *log.Logger) (*Handler, error) {
	if repo == nil {
		return nil, errors.New("models http: nil repository")
	}
	return &Handler{repo: repo, logger: logger}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	id, err := h.repo.CreateModel(r.Context(), payload.Name)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateModel) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Printf("model create error: %v", err)
		http.Error(w, "create error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

// RunsHandler serves model runs:
// POST /api/v1/models/runs              record a run with its values
// GET  /api/v1/models/runs?model=...    list a model's runs
type RunsHandler struct {
	repo   *modelspg.Repository
	logger *log.Logger
}

// NewRunsHandler constructs a runs handler.
func NewRunsHandler(repo *modelspg.Repository, logger *log.Logger) (*RunsHandler, error) {
	if repo == nil {
		return nil, errors.New("models http: nil repository")
	}
	return &RunsHandler{repo: repo, logger: logger}, nil
}

func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *RunsHandler) create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Model           string `json:"model"`
		Scenario        string `json:"scenario"`
		SensorID        int64  `json:"sensor_id"`
		SensorMeasureID int64  `json:"sensor_measure_id"`
		Products        []struct {
			Measure string `json:"measure"`
			Values  []struct {
				Timestamp string `json:"timestamp"`
				Value     any    `json:"value"`
			} `json:"values"`
		} `json:"products"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if payload.Model == "" || len(payload.Products) == 0 {
		http.Error(w, "model and products are required", http.StatusBadRequest)
		return
	}

	spec := modelspg.RunSpec{
		Model:           payload.Model,
		Scenario:        payload.Scenario,
		SensorID:        payload.SensorID,
		SensorMeasureID: payload.SensorMeasureID,
	}
	for _, product := range payload.Products {
		attr, err := h.repo.Measure(r.Context(), product.Measure)
		if err != nil {
			if errors.Is(err, models.ErrUnknownMeasure) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.logger.Printf("run create error: %v", err)
			http.Error(w, "create error", http.StatusInternalServerError)
			return
		}

		values := make([]models.ProductValue, 0, len(product.Values))
		for _, raw := range product.Values {
			ts, err := time.Parse(time.RFC3339, raw.Timestamp)
			if err != nil {
				http.Error(w, "timestamp must be RFC3339", http.StatusBadRequest)
				return
			}
			value := raw.Value
			// JSON numbers arrive as float64; coerce them for integer measures.
			if attr.Datatype == eav.DatatypeInteger {
				if f, isFloat := value.(float64); isFloat && f == float64(int64(f)) {
					value = int64(f)
				}
			}
			values = append(values, models.ProductValue{Measure: product.Measure, Timestamp: ts, Value: value})
		}
		spec.Products = append(spec.Products, modelspg.ProductSpec{Measure: product.Measure, Values: values})
	}

	id, err := h.repo.CreateRun(r.Context(), spec)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownModel),
			errors.Is(err, models.ErrUnknownMeasure),
			errors.Is(err, eav.ErrValueMismatch):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, eav.ErrDuplicateValue):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Printf("run create error: %v", err)
			http.Error(w, "create error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": id})
}

func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request) {
	modelName := r.URL.Query().Get("model")
	if modelName == "" {
		http.Error(w, "model is required", http.StatusBadRequest)
		return
	}

	runs, err := h.repo.ListRuns(r.Context(), modelName)
	if err != nil {
		h.logger.Printf("run list error: %v", err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		items = append(items, map[string]any{
			"id":       run.ID,
			"model":    run.ModelName,
			"scenario": run.ScenarioDescription,
			"recorded": run.TimeCreated.Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// ValuesHandler serves GET /api/v1/models/runs/values?run_id=...
type ValuesHandler struct {
	repo   *modelspg.Repository
	logger *log.Logger
}

// NewValuesHandler constructs a run values handler.
func NewValuesHandler(repo *modelspg.Repository, logger *log.Logger) (*ValuesHandler, error) {
	if repo == nil {
		return nil, errors.New("models http: nil repository")
	}
	return &ValuesHandler{repo: repo, logger: logger}, nil
}

func (h *ValuesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID, ok := runIDParam(w, r)
	if !ok {
		return
	}

	done := metrics.ObserveEntityQuery("model")
	values, err := h.repo.RunValues(r.Context(), runID)
	done(err)
	if err != nil {
		h.logger.Printf("run values error: %v", err)
		http.Error(w, "query error", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(values))
	for _, value := range values {
		items = append(items, map[string]any{
			"measure":   value.Measure,
			"timestamp": value.Timestamp.Format(time.RFC3339),
			"value":     value.Value,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// ReportHandler serves GET /api/v1/models/runs/report.pdf?run_id=...
type ReportHandler struct {
	repo   *modelspg.Repository
	logger *log.Logger
}

// NewReportHandler constructs a run report handler.
func NewReportHandler(repo *modelspg.Repository, logger *log.Logger) (*ReportHandler, error) {
	if repo == nil {
		return nil, errors.New("models http: nil repository")
	}
	return &ReportHandler{repo: repo, logger: logger}, nil
}

func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runID, ok := runIDParam(w, r)
	if !ok {
		return
	}

	run, err := h.repo.Run(r.Context(), runID)
	if err != nil {
		if errors.Is(err, models.ErrUnknownRun) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Printf("run report error: %v", err)
		http.Error(w, "report error", http.StatusInternalServerError)
		return
	}
	values, err := h.repo.RunValues(r.Context(), runID)
	if err != nil {
		h.logger.Printf("run report error: %v", err)
		http.Error(w, "report error", http.StatusInternalServerError)
		return
	}

	payload, err := interfaces.BuildRunPDF(run, values)
	if err != nil {
		h.logger.Printf("run report error: %v", err)
		http.Error(w, "report error", http.StatusInternalServerError)
		return
	}

	metrics.CountExport("run_pdf")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
	_, _ = w.Write(payload)
}

func runIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	runID, err := strconv.ParseInt(r.URL.Query().Get("run_id"), 10, 64)
	if err != nil || runID <= 0 {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return 0, false
	}
	return runID, true
}
