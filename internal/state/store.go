// Package state holds the latest sensor reading and customer location.
package state

import (
	"sync"
	"time"
)

// SensorReading is the most recent device report. A zero LastUpdate means no reading yet.
type SensorReading struct {
	Temperature float64
	Humidity    float64
	PM25        float64
	DeviceID    string
	LastUpdate  time.Time
}

// HasData reports whether a reading was ever stored.
func (r SensorReading) HasData() bool {
	return !r.LastUpdate.IsZero()
}

// ReadingInput is a decoded device payload before it is stamped.
type ReadingInput struct {
	Temperature float64
	Humidity    float64
	PM25        float64
	DeviceID    string
}

// Location is where the customer wants the device to report from.
// Lat and Lon keep the text they were supplied with.
type Location struct {
	Lat         string
	Lon         string
	Name        string
	HasLocation bool
}

// Store keeps one SensorReading and one Location. Both are replaced whole.
type Store struct {
	mu       sync.RWMutex
	reading  SensorReading
	location Location
}

// NewStore returns a store with no reading and no location.
func NewStore() *Store {
	return &Store{}
}

// SetReading replaces the reading and stamps it with now.
func (s *Store) SetReading(in ReadingInput, now time.Time) SensorReading {
	r := SensorReading{
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		PM25:        in.PM25,
		DeviceID:    in.DeviceID,
		LastUpdate:  now,
	}
	s.mu.Lock()
	s.reading = r
	s.mu.Unlock()
	return r
}

// Reading returns a copy of the current reading.
func (s *Store) Reading() SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading
}

// SetLocation replaces the location and marks it as set.
func (s *Store) SetLocation(lat, lon, name string) Location {
	loc := Location{Lat: lat, Lon: lon, Name: name, HasLocation: true}
	s.mu.Lock()
	s.location = loc
	s.mu.Unlock()
	return loc
}

// Location returns a copy of the current location.
func (s *Store) Location() Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}
