package archive

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coreconfig "github.com/m3rciful/sensorbridge/core/config"
	"github.com/m3rciful/sensorbridge/internal/report"
	"github.com/m3rciful/sensorbridge/internal/state"
)

const (
	measurementSensor   = "sensor_data"
	measurementLocation = "location"
)

// PointWriter is the blocking write API of the InfluxDB client.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes readings and location changes as points.
type Influx struct {
	writer PointWriter
	close  func()
	now    func() time.Time
}

// NewInflux connects a client for cfg and writes into cfg.Bucket.
func NewInflux(cfg coreconfig.InfluxConfig) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		close:  client.Close,
		now:    time.Now,
	}
}

// NewInfluxWithWriter is used when the write API is managed elsewhere.
func NewInfluxWithWriter(w PointWriter) *Influx {
	return &Influx{writer: w, now: time.Now}
}

func readingPoint(r state.SensorReading) *write.Point {
	return influxdb2.NewPoint(
		measurementSensor,
		map[string]string{
			"device_id": r.DeviceID,
			"alert":     string(report.ClassifyPM25(r.PM25)),
		},
		map[string]interface{}{
			"temperature": r.Temperature,
			"humidity":    r.Humidity,
			"pm25":        r.PM25,
		},
		r.LastUpdate,
	)
}

// RecordReading writes one sensor_data point stamped with the reading time.
func (i *Influx) RecordReading(ctx context.Context, r state.SensorReading) error {
	if err := i.writer.WritePoint(ctx, readingPoint(r)); err != nil {
		return fmt.Errorf("archive: influx write reading: %w", err)
	}
	return nil
}

// RecordLocation writes one location point.
func (i *Influx) RecordLocation(ctx context.Context, loc state.Location, source string) error {
	p := influxdb2.NewPoint(
		measurementLocation,
		map[string]string{"source": source},
		map[string]interface{}{
			"lat":  loc.Lat,
			"lon":  loc.Lon,
			"name": loc.Name,
		},
		i.now(),
	)
	if err := i.writer.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("archive: influx write location: %w", err)
	}
	return nil
}

// Close releases the client.
func (i *Influx) Close() error {
	if i.close != nil {
		i.close()
	}
	return nil
}
