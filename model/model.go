// Package model holds the farm domain entities shared by the codec, the stores and the services.
package model

import (
	"fmt"
	"math"
	"time"
)

type (
	// Reading is one timestamped sensor sample plus the actuator snapshot taken at capture time.
	Reading struct {
		Time             time.Time
		Temperature      float64
		Humidity         float64
		SoilMoisture     float64
		LightSensorValue float64
		SolarSensorValue float64
		LEDStatus        bool
		FanStatus        bool
		ServoMotorAngle  float64
	}

	// Range is a closed target interval.
	Range struct {
		Min float64
		Max float64
	}

	// Preset is a named environment target for the controller.
	Preset struct {
		Name         string
		Temp         Range
		Humidity     Range
		SoilMoisture Range
	}

	// ActuatorState is the latest known actuator snapshot pushed by the controller.
	ActuatorState struct {
		LEDStatus       bool
		FanStatus       bool
		ServoMotorAngle float64
	}

	// DaySummary holds per-day averages of the sensor values.
	DaySummary struct {
		Date            time.Time
		AvgTemperature  float64
		AvgHumidity     float64
		AvgSoilMoisture float64
		AvgLight        float64
		AvgSolar        float64
	}
)

// Finite reports whether all five sensor values of the reading are finite numbers.
func (r Reading) Finite() bool {
	return isFinite(r.Temperature) &&
		isFinite(r.Humidity) &&
		isFinite(r.SoilMoisture) &&
		isFinite(r.LightSensorValue) &&
		isFinite(r.SolarSensorValue)
}

// Actuators returns the actuator snapshot carried by the reading.
func (r Reading) Actuators() ActuatorState {
	return ActuatorState{
		LEDStatus:       r.LEDStatus,
		FanStatus:       r.FanStatus,
		ServoMotorAngle: r.ServoMotorAngle,
	}
}

func (r Range) validate(field string) error {
	if !isFinite(r.Min) || !isFinite(r.Max) {
		return fmt.Errorf("%s range must be finite", field)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%s range min %.2f exceeds max %.2f", field, r.Min, r.Max)
	}
	return nil
}

// Validate checks that the preset has a name and that every range is finite with min <= max.
func (p Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("preset name is missing")
	}
	if err := p.Temp.validate("temperature"); err != nil {
		return err
	}
	if err := p.Humidity.validate("humidity"); err != nil {
		return err
	}
	return p.SoilMoisture.validate("soil moisture")
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
