// Package relay ties the state store to chat notifications and archives.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/sensorbridge/core/logger"
	"github.com/m3rciful/sensorbridge/internal/archive"
	"github.com/m3rciful/sensorbridge/internal/report"
	"github.com/m3rciful/sensorbridge/internal/state"
)

const component = "relay"

// SampleReading is what /test stores.
var SampleReading = state.ReadingInput{
	Temperature: 28.5,
	Humidity:    65,
	PM25:        35.2,
	DeviceID:    "TEST_001",
}

// Notifier delivers a chat message without reporting failures.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string)
}

// LocationObserver is called after every location change.
type LocationObserver func(ctx context.Context, loc state.Location)

// Options configures a Service.
type Options struct {
	Store     *state.Store
	Formatter report.Formatter
	Notifier  Notifier
	// Archive may be nil.
	Archive archive.Archive
	// OperatorChatID receives sensor notifications; zero disables them.
	OperatorChatID int64
	Now            func() time.Time
}

// Service applies readings and locations to the store and fans out the side effects.
type Service struct {
	store    *state.Store
	fmt      report.Formatter
	notifier Notifier
	archive  archive.Archive
	operator int64
	now      func() time.Time

	mu        sync.RWMutex
	observers []LocationObserver
}

// New builds a Service. A nil Store gets a fresh one.
func New(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		fmt:      opts.Formatter,
		notifier: opts.Notifier,
		archive:  opts.Archive,
		operator: opts.OperatorChatID,
		now:      opts.Now,
	}
	if s.store == nil {
		s.store = state.NewStore()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Formatter returns the message formatter.
func (s *Service) Formatter() report.Formatter { return s.fmt }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// Reading returns the current sensor reading.
func (s *Service) Reading() state.SensorReading { return s.store.Reading() }

// Location returns the current customer location.
func (s *Service) Location() state.Location { return s.store.Location() }

// Notify sends text to chatID through the notifier.
func (s *Service) Notify(ctx context.Context, chatID int64, text string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, chatID, text)
	}
}

// OnLocation registers fn to run after each location change.
func (s *Service) OnLocation(fn LocationObserver) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// ReceiveReading stores a device reading, archives it and, once a location
// is known, sends the operator a sensor notification.
func (s *Service) ReceiveReading(ctx context.Context, in state.ReadingInput) state.SensorReading {
	r := s.store.SetReading(in, s.now())
	loc := s.store.Location()
	alert := report.ClassifyPM25(r.PM25)

	logger.Info(ctx, component, "reading.stored",
		slog.String("status", "ok"),
		slog.String("device_id", r.DeviceID),
		slog.Float64("temperature", r.Temperature),
		slog.Float64("humidity", r.Humidity),
		slog.Float64("pm25", r.PM25),
		slog.String("alert", string(alert)),
		slog.Bool("has_location", loc.HasLocation),
	)
	s.recordReading(ctx, r)

	if loc.HasLocation {
		s.notifyOperator(ctx, loc, r)
	}
	return r
}

// StoreTestReading stores SampleReading without notifying the operator.
func (s *Service) StoreTestReading(ctx context.Context) state.SensorReading {
	r := s.store.SetReading(SampleReading, s.now())
	logger.Info(ctx, component, "reading.sample",
		slog.String("status", "ok"),
		slog.String("device_id", r.DeviceID),
	)
	return r
}

// SetLocation replaces the customer location and informs archives and observers.
func (s *Service) SetLocation(ctx context.Context, lat, lon, name, source string) state.Location {
	loc := s.store.SetLocation(lat, lon, name)
	logger.Info(ctx, component, "location.set",
		slog.String("status", "ok"),
		slog.String("lat", lat),
		slog.String("lon", lon),
		slog.String("name", name),
		slog.String("source", source),
	)
	if s.archive != nil {
		if err := s.archive.RecordLocation(ctx, loc, source); err != nil {
			logger.Warn(ctx, "archive", "archive.location", slog.String("status", "fail"), slog.String("err", err.Error()))
		}
	}

	s.mu.RLock()
	observers := append([]LocationObserver(nil), s.observers...)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(ctx, loc)
	}
	return loc
}

func (s *Service) recordReading(ctx context.Context, r state.SensorReading) {
	if s.archive == nil {
		return
	}
	if err := s.archive.RecordReading(ctx, r); err != nil {
		logger.Warn(ctx, "archive", "archive.reading",
			slog.String("status", "fail"),
			slog.String("device_id", r.DeviceID),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) notifyOperator(ctx context.Context, loc state.Location, r state.SensorReading) {
	if s.operator == 0 {
		logger.Warn(ctx, component, "notify.sensor",
			slog.String("status", "skip"),
			slog.String("reason", "no_operator_chat"),
		)
		return
	}
	text, ok := s.fmt.SensorNotification(loc, r)
	if !ok {
		return
	}
	s.Notify(ctx, s.operator, text)
	logger.Debug(ctx, component, "notify.sensor",
		slog.String("status", "ok"),
		slog.Int64("chat_id", s.operator),
		slog.String("alert", string(report.ClassifyPM25(r.PM25))),
	)
}
