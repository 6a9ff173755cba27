// Package archive records readings and location changes to history stores.
// Archives are write-only; relay state is never restored from them.
package archive

import (
	"context"
	"errors"

	"github.com/m3rciful/sensorbridge/internal/state"
)

// Location sources.
const (
	SourceAttachment = "attachment"
	SourceCommand    = "command"
)

// Archive stores history of relay state changes.
type Archive interface {
	RecordReading(ctx context.Context, r state.SensorReading) error
	RecordLocation(ctx context.Context, loc state.Location, source string) error
	Close() error
}

// Multi fans every record out to all archives.
type Multi []Archive

// RecordReading writes r to every archive and joins the failures.
func (m Multi) RecordReading(ctx context.Context, r state.SensorReading) error {
	var errs []error
	for _, a := range m {
		if err := a.RecordReading(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordLocation writes loc to every archive and joins the failures.
func (m Multi) RecordLocation(ctx context.Context, loc state.Location, source string) error {
	var errs []error
	for _, a := range m {
		if err := a.RecordLocation(ctx, loc, source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every archive.
func (m Multi) Close() error {
	var errs []error
	for _, a := range m {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
