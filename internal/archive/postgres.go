package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/sensorbridge/internal/report"
	"github.com/m3rciful/sensorbridge/internal/state"
)

const (
	insertReading = `INSERT INTO sensor_readings (device_id, temperature, humidity, pm25, alert_level, received_at)
VALUES (:device_id, :temperature, :humidity, :pm25, :alert_level, :received_at)`

	insertLocation = `INSERT INTO customer_locations (lat, lon, name, source, set_at)
VALUES (:lat, :lon, :name, :source, :set_at)`
)

type readingRow struct {
	DeviceID    string    `db:"device_id"`
	Temperature float64   `db:"temperature"`
	Humidity    float64   `db:"humidity"`
	PM25        float64   `db:"pm25"`
	AlertLevel  string    `db:"alert_level"`
	ReceivedAt  time.Time `db:"received_at"`
}

type locationRow struct {
	Lat    string    `db:"lat"`
	Lon    string    `db:"lon"`
	Name   string    `db:"name"`
	Source string    `db:"source"`
	SetAt  time.Time `db:"set_at"`
}

func newReadingRow(r state.SensorReading) readingRow {
	return readingRow{
		DeviceID:    r.DeviceID,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		PM25:        r.PM25,
		AlertLevel:  string(report.ClassifyPM25(r.PM25)),
		ReceivedAt:  r.LastUpdate.UTC(),
	}
}

// Postgres appends history rows through sqlx. The pool is owned by the caller.
type Postgres struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgres wraps db, which must have the archive migrations applied.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// RecordReading inserts one sensor_readings row.
func (p *Postgres) RecordReading(ctx context.Context, r state.SensorReading) error {
	if _, err := p.db.NamedExecContext(ctx, insertReading, newReadingRow(r)); err != nil {
		return fmt.Errorf("archive: insert reading: %w", err)
	}
	return nil
}

// RecordLocation inserts one customer_locations row.
func (p *Postgres) RecordLocation(ctx context.Context, loc state.Location, source string) error {
	row := locationRow{Lat: loc.Lat, Lon: loc.Lon, Name: loc.Name, Source: source, SetAt: p.now().UTC()}
	if _, err := p.db.NamedExecContext(ctx, insertLocation, row); err != nil {
		return fmt.Errorf("archive: insert location: %w", err)
	}
	return nil
}

// Close is a no-op; bootstrap closes the pool.
func (p *Postgres) Close() error { return nil }
