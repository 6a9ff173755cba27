package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/m3rciful/sensorbridge/internal/state"
)

// ErrInvalidPayload wraps every reading decode failure.
var ErrInvalidPayload = errors.New("invalid sensor payload")

type readingPayload struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	PM25        *float64 `json:"pm25"`
	DeviceID    string   `json:"deviceId"`
}

// DecodeReading parses a device reading. The three measurements are required numbers.
func DecodeReading(r io.Reader) (state.ReadingInput, error) {
	var p readingPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return state.ReadingInput{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p.input()
}

// ParseReading is DecodeReading over a byte slice.
func ParseReading(data []byte) (state.ReadingInput, error) {
	var p readingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return state.ReadingInput{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p.input()
}

func (p readingPayload) input() (state.ReadingInput, error) {
	var missing []string
	if p.Temperature == nil {
		missing = append(missing, "temperature")
	}
	if p.Humidity == nil {
		missing = append(missing, "humidity")
	}
	if p.PM25 == nil {
		missing = append(missing, "pm25")
	}
	if len(missing) > 0 {
		return state.ReadingInput{}, fmt.Errorf("%w: missing %v", ErrInvalidPayload, missing)
	}
	return state.ReadingInput{
		Temperature: *p.Temperature,
		Humidity:    *p.Humidity,
		PM25:        *p.PM25,
		DeviceID:    p.DeviceID,
	}, nil
}

// LocationBody is the device view of the customer location.
type LocationBody struct {
	HasLocation bool   `json:"hasLocation"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	Timestamp   string `json:"timestamp"`
}

// NewLocationBody renders loc stamped with now.
func NewLocationBody(loc state.Location, now string) LocationBody {
	return LocationBody{
		HasLocation: loc.HasLocation,
		Lat:         loc.Lat,
		Lon:         loc.Lon,
		Name:        loc.Name,
		Timestamp:   now,
	}
}
