// Package service is the thin HTTP glue around the execution engine:
// request decoding, response encoding, and status reporting. It owns no
// engine semantics.
package service

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"

	"github.com/google/uuid"

	"github.com/gridsum-dev/gridsum/internal/engine"
	"github.com/gridsum-dev/gridsum/internal/matrix"
)

// Engine is the slice of the orchestrator the service consumes.
type Engine interface {
	Execute(ctx context.Context, a, b *matrix.Matrix) (*engine.ExecutionResult, error)
}

// DeviceInfo describes the device behind the engine for status
// endpoints. engine.Backend satisfies it.
type DeviceInfo interface {
	Name() string
	Tag() string
	Stats() engine.MemoryStats
}

// Server serves the matrix addition endpoints.
type Server struct {
	engine Engine
	device DeviceInfo
	logger *log.Logger
}

// New creates a server around an engine and its device.
func New(eng Engine, device DeviceInfo, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{engine: eng, device: device, logger: logger}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /add", s.handleAdd)
	mux.HandleFunc("GET /device-info", s.handleDeviceInfo)
	return mux
}

// MatrixPayload is the wire form of a matrix: shape plus a flat
// row-major data array.
type MatrixPayload struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float32 `json:"data"`
}

// AddRequest carries the two input matrices.
type AddRequest struct {
	A MatrixPayload `json:"a"`
	B MatrixPayload `json:"b"`
}

// AddResponse reports the sum and how it was computed.
type AddResponse struct {
	RequestID   string        `json:"request_id"`
	MatrixShape []int         `json:"matrix_shape"`
	ElapsedTime float64       `json:"elapsed_time"`
	Device      string        `json:"device"`
	Result      MatrixPayload `json:"result"`
}

type errorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Detail    string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"device":  s.device.Tag(),
		"adapter": s.device.Name(),
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			RequestID: requestID,
			Detail:    "malformed request body: " + err.Error(),
		})
		return
	}

	a, err := matrix.FromData(req.A.Rows, req.A.Cols, req.A.Data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{RequestID: requestID, Detail: err.Error()})
		return
	}
	b, err := matrix.FromData(req.B.Rows, req.B.Cols, req.B.Data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{RequestID: requestID, Detail: err.Error()})
		return
	}

	res, err := s.engine.Execute(r.Context(), a, b)
	if err != nil {
		status := http.StatusInternalServerError
		if engine.IsKind(err, engine.KindShapeMismatch) {
			status = http.StatusBadRequest
		}
		s.logger.Printf("service: request %s failed: %v", requestID, err)
		writeJSON(w, status, errorResponse{RequestID: requestID, Detail: err.Error()})
		return
	}

	s.logger.Printf("service: request %s added %s on %s in %.6fs",
		requestID, res.Matrix.ShapeString(), res.Device, res.Seconds())

	writeJSON(w, http.StatusOK, AddResponse{
		RequestID:   requestID,
		MatrixShape: []int{res.Matrix.Rows(), res.Matrix.Cols()},
		ElapsedTime: roundSeconds(res.Seconds()),
		Device:      res.Device,
		Result: MatrixPayload{
			Rows: res.Matrix.Rows(),
			Cols: res.Matrix.Cols(),
			Data: res.Matrix.Data(),
		},
	})
}

func (s *Server) handleDeviceInfo(w http.ResponseWriter, _ *http.Request) {
	stats := s.device.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"adapter": s.device.Name(),
		"device":  s.device.Tag(),
		"memory": map[string]any{
			"allocated_bytes":   stats.AllocatedBytes,
			"peak_memory_bytes": stats.PeakMemoryBytes,
			"active_buffers":    stats.ActiveBuffers,
			"launches":          stats.Launches,
		},
	})
}

// roundSeconds truncates elapsed time to microsecond precision for the
// wire, matching the engine's measurement resolution.
func roundSeconds(s float64) float64 {
	return math.Round(s*1e6) / 1e6
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
