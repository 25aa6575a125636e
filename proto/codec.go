package proto

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/kostiamol/farmms/model"
)

const dateLayout = "2006-01-02"

type (
	envelope struct {
		Type Type `json:"type"`
	}

	cropWire struct {
		CropName        *string  `json:"crop_name"`
		TempMax         *float64 `json:"temp_max"`
		TempMin         *float64 `json:"temp_min"`
		HumidityMax     *float64 `json:"humidity_max"`
		HumidityMin     *float64 `json:"humidity_min"`
		SoilMoistureMax *float64 `json:"soil_moisture_max"`
		SoilMoistureMin *float64 `json:"soil_moisture_min"`
	}

	sensorWire struct {
		Temperature      *float64 `json:"temperature"`
		Humidity         *float64 `json:"humidity"`
		SoilMoisture     *float64 `json:"soil_moisture"`
		LightSensorValue *float64 `json:"light_sensor_value"`
		SolarSensorValue *float64 `json:"solar_sensor_value"`
		LEDStatus        *bool    `json:"led_status"`
		FanStatus        *bool    `json:"fan_status"`
		ServoMotorAngle  *float64 `json:"servo_motor_angle"`
	}

	// history values are nullable: a missing sample is sent as null and read back as NaN.
	readingWire struct {
		Timestamp        *time.Time `json:"timestamp"`
		Temperature      *float64   `json:"temperature"`
		Humidity         *float64   `json:"humidity"`
		SoilMoisture     *float64   `json:"soil_moisture"`
		LightSensorValue *float64   `json:"light_sensor_value"`
		SolarSensorValue *float64   `json:"solar_sensor_value"`
		LEDStatus        bool       `json:"led_status"`
		FanStatus        bool       `json:"fan_status"`
		ServoMotorAngle  *float64   `json:"servo_motor_angle"`
	}

	dayWire struct {
		Date            *string  `json:"date"`
		AvgTemperature  *float64 `json:"avg_temperature"`
		AvgHumidity     *float64 `json:"avg_humidity"`
		AvgSoilMoisture *float64 `json:"avg_soil_moisture"`
		AvgLight        *float64 `json:"avg_light"`
		AvgSolar        *float64 `json:"avg_solar"`
	}

	nameMsg struct {
		Type     Type    `json:"type"`
		CropName *string `json:"cropName"`
	}

	allCropMsg struct {
		Type              Type        `json:"type"`
		AllCropConditions *[]cropWire `json:"allCropConditions"`
	}

	addCropMsg struct {
		Type     Type      `json:"type"`
		CropData *cropWire `json:"cropData"`
	}

	cropDataMsg struct {
		Type           Type      `json:"type"`
		CropConditions *cropWire `json:"cropConditions"`
	}

	allSensorMsg struct {
		Type          Type           `json:"type"`
		AllSensorData *[]readingWire `json:"allSensorData"`
	}

	dailySensorMsg struct {
		Type            Type       `json:"type"`
		DailySensorData *[]dayWire `json:"dailySensorData"`
	}

	sensorDataMsg struct {
		Type       Type        `json:"type"`
		SensorData *sensorWire `json:"sensorData"`
	}

	errorMsg struct {
		Type     Type    `json:"type"`
		Reason   *string `json:"reason"`
		CropName string  `json:"cropName,omitempty"`
	}
)

// Encode serializes the message into its JSON wire form.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case GetAllCropData, GetAllSensorData, GetDailySensorData:
		return json.Marshal(envelope{Type: v.Type()})
	case SelectCropData:
		return json.Marshal(nameMsg{Type: v.Type(), CropName: &v.CropName})
	case DeleteCropPreset:
		return json.Marshal(nameMsg{Type: v.Type(), CropName: &v.CropName})
	case AllCropData:
		list := make([]cropWire, 0, len(v.Presets))
		for _, p := range v.Presets {
			list = append(list, encodeCrop(p))
		}
		return json.Marshal(allCropMsg{Type: v.Type(), AllCropConditions: &list})
	case AddCropPreset:
		c := encodeCrop(v.Preset)
		return json.Marshal(addCropMsg{Type: v.Type(), CropData: &c})
	case CropData:
		msg := cropDataMsg{Type: v.Type()}
		if v.Preset != nil {
			c := encodeCrop(*v.Preset)
			msg.CropConditions = &c
		}
		return json.Marshal(msg)
	case AllSensorData:
		list := make([]readingWire, 0, len(v.Readings))
		for _, r := range v.Readings {
			list = append(list, encodeReading(r))
		}
		return json.Marshal(allSensorMsg{Type: v.Type(), AllSensorData: &list})
	case DailySensorData:
		list := make([]dayWire, 0, len(v.Days))
		for _, d := range v.Days {
			list = append(list, encodeDay(d))
		}
		return json.Marshal(dailySensorMsg{Type: v.Type(), DailySensorData: &list})
	case SensorData:
		return json.Marshal(sensorDataMsg{Type: v.Type(), SensorData: &sensorWire{
			Temperature:      num(v.Temperature),
			Humidity:         num(v.Humidity),
			SoilMoisture:     num(v.SoilMoisture),
			LightSensorValue: num(v.LightSensorValue),
			SolarSensorValue: num(v.SolarSensorValue),
			LEDStatus:        &v.LEDStatus,
			FanStatus:        &v.FanStatus,
			ServoMotorAngle:  num(v.ServoMotorAngle),
		}})
	case Error:
		return json.Marshal(errorMsg{Type: v.Type(), Reason: &v.Reason, CropName: v.CropName})
	default:
		return nil, fmt.Errorf("unsupported message %T", m)
	}
}

// Decode parses one wire message. Unknown types and payloads lacking required fields yield a
// *DecodeError; unknown fields are ignored.
func Decode(b []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, malformed("", err.Error())
	}

	switch env.Type {
	case TypeGetAllCropData:
		return GetAllCropData{}, nil
	case TypeGetAllSensorData:
		return GetAllSensorData{}, nil
	case TypeGetDailySensorData:
		return GetDailySensorData{}, nil
	case TypeSelectCropData, TypeDeleteCropPreset:
		return decodeName(env.Type, b)
	case TypeAllCropData:
		return decodeAllCrop(b)
	case TypeAddCropPreset:
		return decodeAddCrop(b)
	case TypeCropData:
		return decodeCropData(b)
	case TypeAllSensorData:
		return decodeAllSensor(b)
	case TypeDailySensorData:
		return decodeDailySensor(b)
	case TypeSensorData:
		return decodeSensorData(b)
	case TypeError:
		return decodeError(b)
	default:
		return nil, malformed(env.Type, "unknown message type")
	}
}

func decodeName(t Type, b []byte) (Message, error) {
	var m nameMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, malformed(t, err.Error())
	}
	if m.CropName == nil {
		return nil, malformed(t, "cropName is missing")
	}
	if t == TypeSelectCropData {
		return SelectCropData{CropName: *m.CropName}, nil
	}
	return DeleteCropPreset{CropName: *m.CropName}, nil
}

func decodeAllCrop(b []byte) (Message, error) {
	var m allCropMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, malformed(TypeAllCropData, err.Error())
	}
	if m.AllCropConditions == nil {
		return nil, malformed(TypeAllCropData, "allCropConditions is missing")
	}
	presets := make([]model.Preset, 0, len(*m.AllCropConditions))
	for _, c := range *m.AllCropConditions {
		p, err := decodeCrop(c)
		if err != nil {
			return nil, malformed(TypeAllCropData, err.Error())
		}
		presets = append(presets, p)
	}
	return AllCropData{Presets: presets}, nil
}

func decodeAddCrop(b []byte) (Message, error) {
	var m addCropMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, malformed(TypeAddCropPreset, err.Error())
	}
	if m.CropData == nil {
		return nil, malformed(TypeAddCropPreset, "cropData is missing")
	}
	p, err := decodeCrop(*m.CropData)
	if err != nil {
		return nil, malformed(TypeAddCropPreset, err.Error())
	}
	return AddCropPreset{Preset: p}, nil
}

func decodeCropData(b []byte) (Message, error) {
	var m cropDataMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, malformed(TypeCropData, err.Error())
	}
	if m.CropConditions == nil {
		return CropData{}, nil
	}
	p, err := decodeCrop(*m.CropConditions)
	if err != nil {
		return nil, malformed(TypeCropData, err.Error())
	}
	return CropData{Preset: &p}, nil
}

func decodeAllSensor(b []byte) (Message, error) {
	var m allSensorMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, malformed(TypeAllSensorData, err.Error())
	}
	if m.AllSensorData == nil {
		return nil, malformed(TypeAllSensorData, "allSensorData is missing")
	}
	readings := make([]model.Reading, 0, len(*m.AllSensorData))
	for _, w := range *m.AllSensorData {
		if w.Timestamp == nil {
			return nil, malformed(TypeAllSensorData, "timestamp is missing")
		}
		readings = append(readings, model.Reading{
			Time:             *w.Timestamp,
			Temperature:      orNaN(w.Temperature),
			Humidity:         orNaN(w.Humidity),
			SoilMoisture:     orNaN(w.SoilMoisture),
			LightSensorValue: orNaN(w.LightSensorValue),
			SolarSensorValue: orNaN(w.SolarSensorValue),
			LEDStatus:        w.LEDStatus,
			FanStatus:        w.FanStatus,
			ServoMotorAngle:  orNaN(w.ServoMotorAngle),
		})
	}
	return AllSensorData{Readings: readings}, nil
}

func decodeDailySensor(b []byte) (Message, error) {
	var m dailySensorMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, malformed(TypeDailySensorData, err.Error())
	}
	if m.DailySensorData == nil {
		return nil, malformed(TypeDailySensorData, "dailySensorData is missing")
	}
	days := make([]model.DaySummary, 0, len(*m.DailySensorData))
	for _, w := range *m.DailySensorData {
		if w.Date == nil {
			return nil, malformed(TypeDailySensorData, "date is missing")
		}
		date, err := time.Parse(dateLayout, *w.Date)
		if err != nil {
			return nil, malformed(TypeDailySensorData, err.Error())
		}
		if err := required(map[string]*float64{
			"avg_temperature":   w.AvgTemperature,
			"avg_humidity":      w.AvgHumidity,
			"avg_soil_moisture": w.AvgSoilMoisture,
			"avg_light":         w.AvgLight,
			"avg_solar":         w.AvgSolar,
		}); err != nil {
			return nil, malformed(TypeDailySensorData, err.Error())
		}
		days = append(days, model.DaySummary{
			Date:            date,
			AvgTemperature:  *w.AvgTemperature,
			AvgHumidity:     *w.AvgHumidity,
			AvgSoilMoisture: *w.AvgSoilMoisture,
			AvgLight:        *w.AvgLight,
			AvgSolar:        *w.AvgSolar,
		})
	}
	return DailySensorData{Days: days}, nil
}

func decodeSensorData(b []byte) (Message, error) {
	var m sensorDataMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, malformed(TypeSensorData, err.Error())
	}
	w := m.SensorData
	if w == nil {
		return nil, malformed(TypeSensorData, "sensorData is missing")
	}
	if err := required(map[string]*float64{
		"temperature":        w.Temperature,
		"humidity":           w.Humidity,
		"soil_moisture":      w.SoilMoisture,
		"light_sensor_value": w.LightSensorValue,
		"solar_sensor_value": w.SolarSensorValue,
		"servo_motor_angle":  w.ServoMotorAngle,
	}); err != nil {
		return nil, malformed(TypeSensorData, err.Error())
	}
	if w.LEDStatus == nil || w.FanStatus == nil {
		return nil, malformed(TypeSensorData, "actuator status is missing")
	}
	return SensorData{
		Temperature:      *w.Temperature,
		Humidity:         *w.Humidity,
		SoilMoisture:     *w.SoilMoisture,
		LightSensorValue: *w.LightSensorValue,
		SolarSensorValue: *w.SolarSensorValue,
		LEDStatus:        *w.LEDStatus,
		FanStatus:        *w.FanStatus,
		ServoMotorAngle:  *w.ServoMotorAngle,
	}, nil
}

func decodeError(b []byte) (Message, error) {
	var m errorMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, malformed(TypeError, err.Error())
	}
	if m.Reason == nil {
		return nil, malformed(TypeError, "reason is missing")
	}
	return Error{Reason: *m.Reason, CropName: m.CropName}, nil
}

func encodeCrop(p model.Preset) cropWire {
	name := p.Name
	return cropWire{
		CropName:        &name,
		TempMax:         num(p.Temp.Max),
		TempMin:         num(p.Temp.Min),
		HumidityMax:     num(p.Humidity.Max),
		HumidityMin:     num(p.Humidity.Min),
		SoilMoistureMax: num(p.SoilMoisture.Max),
		SoilMoistureMin: num(p.SoilMoisture.Min),
	}
}

func decodeCrop(c cropWire) (model.Preset, error) {
	if c.CropName == nil {
		return model.Preset{}, fmt.Errorf("crop_name is missing")
	}
	if err := required(map[string]*float64{
		"temp_max":          c.TempMax,
		"temp_min":          c.TempMin,
		"humidity_max":      c.HumidityMax,
		"humidity_min":      c.HumidityMin,
		"soil_moisture_max": c.SoilMoistureMax,
		"soil_moisture_min": c.SoilMoistureMin,
	}); err != nil {
		return model.Preset{}, err
	}
	return model.Preset{
		Name:         *c.CropName,
		Temp:         model.Range{Min: *c.TempMin, Max: *c.TempMax},
		Humidity:     model.Range{Min: *c.HumidityMin, Max: *c.HumidityMax},
		SoilMoisture: model.Range{Min: *c.SoilMoistureMin, Max: *c.SoilMoistureMax},
	}, nil
}

func encodeReading(r model.Reading) readingWire {
	t := r.Time.UTC()
	return readingWire{
		Timestamp:        &t,
		Temperature:      num(r.Temperature),
		Humidity:         num(r.Humidity),
		SoilMoisture:     num(r.SoilMoisture),
		LightSensorValue: num(r.LightSensorValue),
		SolarSensorValue: num(r.SolarSensorValue),
		LEDStatus:        r.LEDStatus,
		FanStatus:        r.FanStatus,
		ServoMotorAngle:  num(r.ServoMotorAngle),
	}
}

func encodeDay(d model.DaySummary) dayWire {
	date := d.Date.UTC().Format(dateLayout)
	return dayWire{
		Date:            &date,
		AvgTemperature:  num(d.AvgTemperature),
		AvgHumidity:     num(d.AvgHumidity),
		AvgSoilMoisture: num(d.AvgSoilMoisture),
		AvgLight:        num(d.AvgLight),
		AvgSolar:        num(d.AvgSolar),
	}
}

// num returns nil for values JSON cannot carry.
func num(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func orNaN(f *float64) float64 {
	if f == nil {
		return math.NaN()
	}
	return *f
}

func required(fields map[string]*float64) error {
	for name, v := range fields {
		if v == nil {
			return fmt.Errorf("%s is missing", name)
		}
	}
	return nil
}
