package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ml-wrappers/internal/dataset"
	"ml-wrappers/internal/features"
	"ml-wrappers/internal/loader"
	"ml-wrappers/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// ServerMetrics counts HTTP requests.
type ServerMetrics interface {
	Requests(endpoint string, code int) metrics.MetricsCounter
}

// ServerConfig describes the raw rows the server accepts.
type ServerConfig struct {
	Port    int
	Columns []string       // names of the raw input columns, in order
	Options loader.Options // timestamp layouts for datetime cells
}

// ModelServer provides an HTTP API for predictions. Raw rows are typed,
// featurized and passed to the wrapped model.
type ModelServer struct {
	model      Model
	featurizer *features.TimestampFeaturizer
	config     ServerConfig
	metrics    ServerMetrics
	server     *http.Server
}

// PredictionRequest holds raw rows; cells are numbers, strings or null. A
// request ID is generated when none is given.
type PredictionRequest struct {
	Rows      [][]any `json:"rows"`
	RequestID string  `json:"request_id,omitempty"`
}

// PredictionResponse is the prediction result. Probabilities are only set for
// classifiers.
type PredictionResponse struct {
	Predictions   []float64   `json:"predictions"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
	Task          Task        `json:"task"`
	RequestID     string      `json:"request_id,omitempty"`
	Latency       float64     `json:"latency_ms"`
	Timestamp     time.Time   `json:"timestamp"`
}

// NewModelServer creates a server for model. featurizer must already be fitted
// and may be nil; metrics may be nil.
func NewModelServer(model Model, featurizer *features.TimestampFeaturizer, config ServerConfig, metrics ServerMetrics) *ModelServer {
	ms := &ModelServer{
		model:      model,
		featurizer: featurizer,
		config:     config,
		metrics:    metrics,
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      ms.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the server's routes.
func (ms *ModelServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.handlePredict)
	mux.HandleFunc("/health", ms.handleHealth)
	mux.HandleFunc("/model/info", ms.handleModelInfo)
	return mux
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/predict"
	if r.Method != http.MethodPost {
		ms.writeError(w, endpoint, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := time.Now()

	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ms.writeError(w, endpoint, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if len(req.Rows) == 0 {
		ms.writeError(w, endpoint, http.StatusBadRequest, "rows cannot be empty")
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	X, err := ms.prepare(req.Rows)
	if err != nil {
		ms.writeError(w, endpoint, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := PredictionResponse{
		Task:      TaskOf(ms.model),
		RequestID: req.RequestID,
	}
	pred, proba, err := Score(r.Context(), ms.model, X)
	if err != nil {
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		ms.writeError(w, endpoint, http.StatusInternalServerError, fmt.Sprintf("prediction failed: %v", err))
		return
	}
	resp.Predictions = pred
	if proba != nil {
		resp.Probabilities = rowsOf(proba)
	}

	resp.Latency = float64(time.Since(start).Microseconds()) / 1000
	resp.Timestamp = time.Now()
	ms.writeJSON(w, endpoint, http.StatusOK, resp)
}

// prepare types the raw rows, featurizes them and returns the model input.
func (ms *ModelServer) prepare(rows [][]any) (*mat.Dense, error) {
	records := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) != len(ms.config.Columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(ms.config.Columns))
		}
		rec := make([]string, len(row))
		for j, cell := range row {
			s, err := cellString(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, ms.config.Columns[j], err)
			}
			rec[j] = s
		}
		records[i] = rec
	}

	table, err := loader.ParseRecords(ms.config.Columns, records, ms.config.Options)
	if err != nil {
		return nil, err
	}

	var ds dataset.Dataset = table
	if ms.featurizer != nil {
		if ds, err = ms.featurizer.Transform(table); err != nil {
			return nil, err
		}
	}
	return dataset.ToDense(ds)
}

func cellString(cell any) (string, error) {
	switch v := cell.(type) {
	case nil:
		return "", nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("unsupported cell type %T", cell)
	}
}

func rowsOf(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		copy(out[i], m.RawRowView(i))
	}
	return out
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ms.writeJSON(w, "/health", http.StatusOK, map[string]string{"status": "ok"})
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"task":           TaskOf(ms.model),
		"input_columns":  ms.config.Columns,
		"output_columns": ms.config.Columns,
	}
	if ms.featurizer != nil {
		info["time_columns"] = ms.featurizer.TimeColumns()
		info["output_columns"] = ms.featurizer.OutputNames(ms.config.Columns)
	}
	ms.writeJSON(w, "/model/info", http.StatusOK, info)
}

func (ms *ModelServer) writeJSON(w http.ResponseWriter, endpoint string, status int, v any) {
	ms.count(endpoint, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Str("endpoint", endpoint).Msg("failed to write response")
	}
}

func (ms *ModelServer) writeError(w http.ResponseWriter, endpoint string, status int, msg string) {
	ms.count(endpoint, status)
	http.Error(w, msg, status)
}

func (ms *ModelServer) count(endpoint string, status int) {
	if ms.metrics != nil {
		ms.metrics.Requests(endpoint, status).Inc()
	}
}
