package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/sensorbridge/internal/state"
)

func TestClassifyPM25(t *testing.T) {
	cases := []struct {
		pm25 float64
		want AlertLevel
	}{
		{80, AlertDanger},
		{75.01, AlertDanger},
		{75, AlertWarning},
		{60, AlertWarning},
		{50, AlertCaution},
		{30, AlertCaution},
		{25, AlertNormal},
		{10, AlertNormal},
		{-1, AlertNormal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyPM25(tc.pm25), "pm25=%v", tc.pm25)
	}
}

func TestThresholdsAreStrict(t *testing.T) {
	// each band includes its upper bound
	assert.Equal(t, AlertWarning, ClassifyPM25(75))
	assert.Equal(t, AlertCaution, ClassifyPM25(50))
	assert.Equal(t, AlertNormal, ClassifyPM25(25))
}

func bangkok(t *testing.T) Formatter {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	return NewFormatter(loc)
}

func TestSensorNotification(t *testing.T) {
	f := bangkok(t)
	loc := state.Location{Lat: "13.7563", Lon: "100.5018", Name: "Bangkok", HasLocation: true}

	_, ok := f.SensorNotification(loc, state.SensorReading{})
	assert.False(t, ok)

	r := state.SensorReading{
		Temperature: 31.2, Humidity: 58, PM25: 80, DeviceID: "ESP32_01",
		LastUpdate: time.Date(2025, 3, 1, 5, 0, 0, 0, time.UTC),
	}
	text, ok := f.SensorNotification(loc, r)
	require.True(t, ok)
	for _, want := range []string{"Bangkok", "ESP32_01", "31.2°C", "58%", "80 μg/m³", "01/03/2025 12:00:00", AlertDanger.Line()} {
		assert.Contains(t, text, want)
	}
}

func TestStatusPlaceholders(t *testing.T) {
	f := NewFormatter(nil)
	now := time.Date(2025, 3, 1, 5, 0, 0, 0, time.UTC)

	text := f.Status(state.Location{}, state.SensorReading{}, now)
	assert.Contains(t, text, "Location not set")
	assert.Contains(t, text, "No data from ESP32 yet")
	assert.Contains(t, text, "01/03/2025 05:00:00")

	text = f.Status(
		state.Location{Lat: "1", Lon: "2", Name: "Home", HasLocation: true},
		state.SensorReading{Temperature: 20, Humidity: 50, PM25: 5, LastUpdate: now},
		now,
	)
	assert.Contains(t, text, "✅ Home\n🌐 1, 2")
	assert.Contains(t, text, "🌡️ Temperature: 20°C")
	assert.NotContains(t, text, "not set")
}

func TestTestTextEchoesSample(t *testing.T) {
	f := NewFormatter(time.UTC)
	r := state.SensorReading{Temperature: 28.5, Humidity: 65, PM25: 35.2, DeviceID: "TEST_001", LastUpdate: time.Unix(0, 0)}

	text := f.Test(r)
	for _, want := range []string{"28.5°C", "65%", "35.2 μg/m³", "TEST_001", "01/01/1970 00:00:00"} {
		assert.Contains(t, text, want)
	}
}

func TestWelcomeAndConfirm(t *testing.T) {
	f := NewFormatter(time.UTC)

	assert.Contains(t, f.Welcome("Somchai"), "Hello Somchai!")
	assert.Contains(t, f.Welcome("Somchai"), "/location 13.7563,100.5018")

	text := f.LocationConfirm(state.Location{Lat: "13.7563", Lon: "100.5018", Name: "Bangkok", HasLocation: true})
	assert.Contains(t, text, "📍 Place: Bangkok")
	assert.Contains(t, text, "🌐 Coordinates: 13.7563, 100.5018")
}
