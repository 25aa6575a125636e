// Package event provides broker links to the controller device: telemetry is consumed from one
// topic and preset commands are published to another, both as protocol JSON.
package event

import (
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/proto"
	"github.com/pkg/errors"
)

// Handler receives decoded controller telemetry.
type Handler func(proto.SensorData)

// decodeTelemetry accepts the sensorData message only; anything else from the controller topic
// is an error.
func decodeTelemetry(data []byte) (proto.SensorData, error) {
	m, err := proto.Decode(data)
	if err != nil {
		return proto.SensorData{}, err
	}
	s, ok := m.(proto.SensorData)
	if !ok {
		return proto.SensorData{}, errors.Errorf("unexpected %s message on telemetry topic", m.Type())
	}
	return s, nil
}

// encodeCommand builds the cropData message sent to the controller; nil clears the active preset.
func encodeCommand(p *model.Preset) ([]byte, error) {
	return proto.Encode(proto.CropData{Preset: p})
}
