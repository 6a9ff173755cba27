// Package device serves the HTTP endpoints polled by the sensor.
package device

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"

	"github.com/m3rciful/sensorbridge/core/logger"
	"github.com/m3rciful/sensorbridge/internal/state"
)

// TimeFormat matches JavaScript's toISOString, which the firmware parses.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

const maxBodyBytes = 64 << 10

// Relay is what the handlers need from the relay service.
type Relay interface {
	ReceiveReading(ctx context.Context, in state.ReadingInput) state.SensorReading
	Location() state.Location
	Now() time.Time
}

// Handlers serves POST /sensor-data and GET /get-location.
type Handlers struct {
	relay Relay
}

// NewHandlers returns handlers over relay.
func NewHandlers(relay Relay) *Handlers {
	return &Handlers{relay: relay}
}

// Register mounts the device routes on r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/sensor-data", h.SensorData).Methods(http.MethodPost)
	r.HandleFunc("/get-location", h.GetLocation).Methods(http.MethodGet)
}

// Stamp renders t the way device responses carry timestamps.
func Stamp(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// SensorData stores a reading posted by the device.
func (h *Handlers) SensorData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(ctx, "device", "reading.panic",
				slog.String("status", "fail"),
				slog.Any("err", rec),
				slog.String("stack", string(debug.Stack())),
			)
			WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process data"})
		}
	}()

	in, err := DecodeReading(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn(ctx, "device", "reading.rejected",
			slog.String("status", "rejected"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		WriteJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	reading := h.relay.ReceiveReading(ctx, in)
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Data received",
		"timestamp": Stamp(reading.LastUpdate),
	})
}

// GetLocation returns the current location whether or not one is set.
func (h *Handlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, NewLocationBody(h.relay.Location(), Stamp(h.relay.Now())))
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.HTTP.Warn("response encode failed", slog.String("event", "http.encode"), slog.String("err", err.Error()))
	}
}
