package proto

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/kostiamol/farmms/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tomato = model.Preset{
	Name:         "Tomato",
	Temp:         model.Range{Min: 18, Max: 27},
	Humidity:     model.Range{Min: 60, Max: 80},
	SoilMoisture: model.Range{Min: 30, Max: 60},
}

func TestDecodeEncodeIsIdentity(t *testing.T) {
	messages := []Message{
		GetAllCropData{},
		GetAllSensorData{},
		GetDailySensorData{},
		SelectCropData{CropName: "Tomato"},
		DeleteCropPreset{CropName: "Basil"},
		AddCropPreset{Preset: tomato},
		AllCropData{Presets: []model.Preset{tomato, {Name: "Basil"}}},
		AllCropData{Presets: []model.Preset{}},
		CropData{Preset: &tomato},
		CropData{},
		SensorData{
			Temperature: 22.5, Humidity: 61, SoilMoisture: 40.2, LightSensorValue: 512,
			SolarSensorValue: 3.3, LEDStatus: true, ServoMotorAngle: 90,
		},
		AllSensorData{Readings: []model.Reading{{
			Time:        time.Date(2024, 10, 1, 9, 30, 0, 0, time.UTC),
			Temperature: 21, Humidity: 50, SoilMoisture: 33, LightSensorValue: 700, SolarSensorValue: 1.5,
			FanStatus: true, ServoMotorAngle: 45,
		}}},
		DailySensorData{Days: []model.DaySummary{{
			Date:           time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
			AvgTemperature: 20.5, AvgHumidity: 55, AvgSoilMoisture: 31, AvgLight: 640, AvgSolar: 2,
		}}},
		AllSensorData{Readings: []model.Reading{}},
		DailySensorData{Days: []model.DaySummary{}},
		Error{Reason: ReasonNotFound, CropName: "Tomato"},
		Error{Reason: ReasonMalformed},
	}

	for _, m := range messages {
		b, err := Encode(m)
		require.Nil(t, err, "%T", m)

		decoded, err := Decode(b)
		require.Nil(t, err, "%s", b)
		assert.Equal(t, m, decoded, "%s", b)
	}
}

func TestEncodeDecodeIsIdentity(t *testing.T) {
	frames := []string{
		`{"type":"getAllCropData"}`,
		`{"type":"selectCropData","cropName":"Tomato"}`,
		`{"type":"deleteCropPreset","cropName":"Tomato"}`,
		`{"type":"addCropPreset","cropData":{"crop_name":"Tomato","temp_max":27,"temp_min":18,"humidity_max":80,"humidity_min":60,"soil_moisture_max":60,"soil_moisture_min":30}}`,
		`{"type":"allCropData","allCropConditions":[{"crop_name":"Tomato","temp_max":27,"temp_min":18,"humidity_max":80,"humidity_min":60,"soil_moisture_max":60,"soil_moisture_min":30}]}`,
		`{"type":"sensorData","sensorData":{"temperature":22.5,"humidity":61,"soil_moisture":40,"light_sensor_value":512,"solar_sensor_value":3.3,"led_status":true,"fan_status":false,"servo_motor_angle":90}}`,
		`{"type":"allSensorData","allSensorData":[{"timestamp":"2024-10-01T09:30:00Z","temperature":21,"humidity":50,"soil_moisture":33,"light_sensor_value":700,"solar_sensor_value":1.5,"led_status":false,"fan_status":true,"servo_motor_angle":45}]}`,
		`{"type":"error","reason":"preset not found","cropName":"Tomato"}`,
	}

	for _, f := range frames {
		m, err := Decode([]byte(f))
		require.Nil(t, err, f)

		b, err := Encode(m)
		require.Nil(t, err, f)
		assert.JSONEq(t, f, string(b))
	}
}

func TestDecodeToleratesExtraFields(t *testing.T) {
	m, err := Decode([]byte(`{"type":"selectCropData","cropName":"Lettuce","sentAt":12345,"screen":"settings"}`))
	require.Nil(t, err)
	assert.Equal(t, SelectCropData{CropName: "Lettuce"}, m)
}

func TestDecodeMalformed(t *testing.T) {
	frames := []string{
		`not json`,
		`{}`,
		`{"type":"makeCoffee"}`,
		`{"type":"selectCropData"}`,
		`{"type":"deleteCropPreset","cropName":7}`,
		`{"type":"addCropPreset"}`,
		`{"type":"addCropPreset","cropData":{"crop_name":"Tomato","temp_max":27}}`,
		`{"type":"sensorData","sensorData":{"temperature":22.5}}`,
		`{"type":"sensorData","sensorData":{"temperature":"hot","humidity":1,"soil_moisture":1,"light_sensor_value":1,"solar_sensor_value":1,"led_status":true,"fan_status":true,"servo_motor_angle":0}}`,
		`{"type":"allSensorData","allSensorData":[{"temperature":1}]}`,
		`{"type":"error"}`,
	}

	for _, f := range frames {
		_, err := Decode([]byte(f))
		require.NotNil(t, err, f)
		decodeErr, ok := err.(*DecodeError)
		require.True(t, ok, f)
		assert.Equal(t, Malformed, decodeErr.Kind, f)
	}
}

func TestHistoryNullsBecomeNaN(t *testing.T) {
	m, err := Decode([]byte(`{"type":"allSensorData","allSensorData":[{"timestamp":"2024-10-01T09:30:00Z","temperature":null,"humidity":50}]}`))
	require.Nil(t, err)

	readings := m.(AllSensorData).Readings
	require.Len(t, readings, 1)
	assert.True(t, math.IsNaN(readings[0].Temperature))
	assert.True(t, math.IsNaN(readings[0].SoilMoisture))
	assert.Equal(t, 50.0, readings[0].Humidity)

	b, err := Encode(m)
	require.Nil(t, err)

	var raw struct {
		AllSensorData []map[string]interface{} `json:"allSensorData"`
	}
	require.Nil(t, json.Unmarshal(b, &raw))
	require.Len(t, raw.AllSensorData, 1)
	assert.Nil(t, raw.AllSensorData[0]["temperature"])
}

func TestEmptyListsAreEncodedAsArrays(t *testing.T) {
	b, err := Encode(AllCropData{})
	require.Nil(t, err)
	assert.JSONEq(t, `{"type":"allCropData","allCropConditions":[]}`, string(b))

	b, err = Encode(AllSensorData{})
	require.Nil(t, err)
	assert.JSONEq(t, `{"type":"allSensorData","allSensorData":[]}`, string(b))
}

func TestReadingTimestampsAreSentInUTC(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	local := time.Date(2024, 10, 1, 18, 30, 0, 0, seoul)
	b, err := Encode(AllSensorData{Readings: []model.Reading{{Time: local, Temperature: 21}}})
	require.Nil(t, err)
	assert.Contains(t, string(b), `"timestamp":"2024-10-01T09:30:00Z"`)

	m, err := Decode(b)
	require.Nil(t, err)
	readings := m.(AllSensorData).Readings
	require.Len(t, readings, 1)
	assert.Equal(t, local.UTC(), readings[0].Time)

	again, err := Encode(m)
	require.Nil(t, err)
	assert.Equal(t, string(b), string(again))
}

func TestCritical(t *testing.T) {
	assert.False(t, Critical(SensorData{}))
	assert.True(t, Critical(AllCropData{}))
	assert.True(t, Critical(CropData{}))
	assert.True(t, Critical(Error{}))
}
