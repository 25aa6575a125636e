// Package proto provides the tagged JSON protocol spoken between the farm service, its viewers and
// the controller.
package proto

import (
	"time"

	"github.com/kostiamol/farmms/model"
)

// Type is the value of the "type" discriminant carried by every message.
type Type string

// Message types.
const (
	TypeGetAllCropData     Type = "getAllCropData"
	TypeAllCropData        Type = "allCropData"
	TypeSelectCropData     Type = "selectCropData"
	TypeAddCropPreset      Type = "addCropPreset"
	TypeDeleteCropPreset   Type = "deleteCropPreset"
	TypeGetAllSensorData   Type = "getAllSensorData"
	TypeAllSensorData      Type = "allSensorData"
	TypeGetDailySensorData Type = "getDailySensorData"
	TypeDailySensorData    Type = "dailySensorData"
	TypeSensorData         Type = "sensorData"
	TypeCropData           Type = "cropData"
	TypeError              Type = "error"
)

// Error reasons.
const (
	ReasonMalformed        = "malformed message"
	ReasonNotFound         = "preset not found"
	ReasonInvalidPreset    = "invalid preset"
	ReasonInvalidReading   = "invalid reading"
	ReasonStoreUnavailable = "store unavailable"
	ReasonLinkUnavailable  = "controller unavailable"
	ReasonUnsupported      = "unsupported message"
)

// Message is implemented by every message of the protocol.
type Message interface {
	Type() Type
}

type (
	// GetAllCropData requests the preset list.
	GetAllCropData struct{}

	// AllCropData carries a snapshot of every preset.
	AllCropData struct {
		Presets []model.Preset
	}

	// SelectCropData makes the named preset the active one.
	SelectCropData struct {
		CropName string
	}

	// AddCropPreset inserts or replaces a preset.
	AddCropPreset struct {
		Preset model.Preset
	}

	// DeleteCropPreset removes the named preset.
	DeleteCropPreset struct {
		CropName string
	}

	// GetAllSensorData requests the full reading history.
	GetAllSensorData struct{}

	// AllSensorData carries the full reading history ordered by time.
	AllSensorData struct {
		Readings []model.Reading
	}

	// GetDailySensorData requests the per-day aggregation of the history.
	GetDailySensorData struct{}

	// DailySensorData carries the per-day summaries ordered by date.
	DailySensorData struct {
		Days []model.DaySummary
	}

	// SensorData is the controller's live push: instantaneous sensor values and actuator state.
	SensorData struct {
		Temperature      float64
		Humidity         float64
		SoilMoisture     float64
		LightSensorValue float64
		SolarSensorValue float64
		LEDStatus        bool
		FanStatus        bool
		ServoMotorAngle  float64
	}

	// CropData carries the active preset. A nil Preset means no preset is active.
	CropData struct {
		Preset *model.Preset
	}

	// Error is the typed error reply sent to a requester.
	Error struct {
		Reason   string
		CropName string
	}
)

func (GetAllCropData) Type() Type     { return TypeGetAllCropData }
func (AllCropData) Type() Type        { return TypeAllCropData }
func (SelectCropData) Type() Type     { return TypeSelectCropData }
func (AddCropPreset) Type() Type      { return TypeAddCropPreset }
func (DeleteCropPreset) Type() Type   { return TypeDeleteCropPreset }
func (GetAllSensorData) Type() Type   { return TypeGetAllSensorData }
func (AllSensorData) Type() Type      { return TypeAllSensorData }
func (GetDailySensorData) Type() Type { return TypeGetDailySensorData }
func (DailySensorData) Type() Type    { return TypeDailySensorData }
func (SensorData) Type() Type         { return TypeSensorData }
func (CropData) Type() Type           { return TypeCropData }
func (Error) Type() Type              { return TypeError }

// Reading stamps the push with the capture time.
func (s SensorData) Reading(t time.Time) model.Reading {
	return model.Reading{
		Time:             t,
		Temperature:      s.Temperature,
		Humidity:         s.Humidity,
		SoilMoisture:     s.SoilMoisture,
		LightSensorValue: s.LightSensorValue,
		SolarSensorValue: s.SolarSensorValue,
		LEDStatus:        s.LEDStatus,
		FanStatus:        s.FanStatus,
		ServoMotorAngle:  s.ServoMotorAngle,
	}
}

// Actuators returns the actuator part of the push.
func (s SensorData) Actuators() model.ActuatorState {
	return model.ActuatorState{
		LEDStatus:       s.LEDStatus,
		FanStatus:       s.FanStatus,
		ServoMotorAngle: s.ServoMotorAngle,
	}
}

// Critical reports whether losing the message would leave a viewer inconsistent. Only live sensor
// pushes are superseded by the next one and may be dropped.
func Critical(m Message) bool {
	return m.Type() != TypeSensorData
}
