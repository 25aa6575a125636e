package svc

import (
	"context"
	"fmt"

	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/proto"
)

type (
	// HistoryStorer is a contract for the reading history store. Readings returns the history
	// ordered by time ascending.
	HistoryStorer interface {
		AppendReading(ctx context.Context, r model.Reading) error
		Readings(ctx context.Context) ([]model.Reading, error)
	}

	// PresetStorer is a contract for the durable copy of the preset mapping.
	PresetStorer interface {
		Presets(ctx context.Context) ([]model.Preset, error)
		SavePreset(ctx context.Context, p model.Preset) error
		DeletePreset(ctx context.Context, name string) error
	}

	// Storer is a contract for the data store.
	Storer interface {
		HistoryStorer
		PresetStorer
		Close() error
	}

	// ControllerLink is a contract for a non-websocket transport to the controller device.
	// Listen blocks delivering telemetry to h until ctx is done. ApplyPreset sends the active
	// preset, nil clears it.
	ControllerLink interface {
		Listen(ctx context.Context, h func(proto.SensorData)) error
		ApplyPreset(p *model.Preset) error
		Close() error
	}

	// Ingester accepts telemetry from the controller.
	Ingester interface {
		Ingest(ctx context.Context, s proto.SensorData) error
	}
)

// NotFoundError is returned when a request references a preset that doesn't exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("preset %q not found", e.Name)
}

// ValidationError is returned when a preset or a reading is rejected before any state changes.
type ValidationError struct {
	What string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.What, e.Err)
}

// StoreError wraps a store failure that aborted a mutation.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s", e.Err)
}

// Cause lets errors.Cause unwrap the store failure.
func (e *StoreError) Cause() error { return e.Err }
