package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresetValidate(t *testing.T) {
	p := Preset{
		Name:         "Tomato",
		Temp:         Range{Min: 18, Max: 27},
		Humidity:     Range{Min: 60, Max: 80},
		SoilMoisture: Range{Min: 30, Max: 60},
	}
	assert.Nil(t, p.Validate())

	noName := p
	noName.Name = ""
	assert.NotNil(t, noName.Validate())

	inverted := p
	inverted.Humidity = Range{Min: 90, Max: 10}
	assert.NotNil(t, inverted.Validate())

	equal := p
	equal.SoilMoisture = Range{Min: 40, Max: 40}
	assert.Nil(t, equal.Validate())

	nan := p
	nan.Temp = Range{Min: math.NaN(), Max: 20}
	assert.NotNil(t, nan.Validate())
}

func TestReadingFinite(t *testing.T) {
	r := Reading{Temperature: 21, Humidity: 55, SoilMoisture: 40, LightSensorValue: 300, SolarSensorValue: 2}
	assert.True(t, r.Finite())

	r.SolarSensorValue = math.Inf(1)
	assert.False(t, r.Finite())

	r.SolarSensorValue = 2
	r.Humidity = math.NaN()
	assert.False(t, r.Finite())
}
