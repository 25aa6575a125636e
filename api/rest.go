package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kostiamol/farmms/model"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
	dateLayout   = "2006-01-02"
)

type (
	presetView struct {
		CropName        string   `json:"crop_name"`
		TempMax         *float64 `json:"temp_max"`
		TempMin         *float64 `json:"temp_min"`
		HumidityMax     *float64 `json:"humidity_max"`
		HumidityMin     *float64 `json:"humidity_min"`
		SoilMoistureMax *float64 `json:"soil_moisture_max"`
		SoilMoistureMin *float64 `json:"soil_moisture_min"`
	}

	actuatorView struct {
		LEDStatus       bool     `json:"led_status"`
		FanStatus       bool     `json:"fan_status"`
		ServoMotorAngle *float64 `json:"servo_motor_angle"`
	}

	presetsView struct {
		Presets   []presetView `json:"presets"`
		Active    *presetView  `json:"active"`
		Actuators actuatorView `json:"actuators"`
	}

	readingView struct {
		Time             time.Time `json:"timestamp"`
		Temperature      *float64  `json:"temperature"`
		Humidity         *float64  `json:"humidity"`
		SoilMoisture     *float64  `json:"soil_moisture"`
		LightSensorValue *float64  `json:"light_sensor_value"`
		SolarSensorValue *float64  `json:"solar_sensor_value"`
		LEDStatus        bool      `json:"led_status"`
		FanStatus        bool      `json:"fan_status"`
		ServoMotorAngle  *float64  `json:"servo_motor_angle"`
	}

	dayView struct {
		Date            string   `json:"date"`
		AvgTemperature  *float64 `json:"avg_temperature"`
		AvgHumidity     *float64 `json:"avg_humidity"`
		AvgSoilMoisture *float64 `json:"avg_soil_moisture"`
		AvgLight        *float64 `json:"avg_light"`
		AvgSolar        *float64 `json:"avg_solar"`
	}

	adviceRequest struct {
		Crop string `json:"crop"`
	}

	adviceView struct {
		Crop   string `json:"crop"`
		Answer string `json:"answer"`
		// Degraded is set when Answer is a fallback text.
		Degraded bool `json:"degraded"`
	}
)

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		a.log.Errorf("func Write: %s", err)
	}
}

func (a *api) getPresetsHandler(w http.ResponseWriter, r *http.Request) {
	ps := a.farm.Presets()
	v := presetsView{
		Presets:   make([]presetView, 0, len(ps)),
		Actuators: toActuatorView(a.farm.Actuators()),
	}
	for _, p := range ps {
		v.Presets = append(v.Presets, toPresetView(p))
	}
	if p := a.farm.Active(); p != nil {
		pv := toPresetView(*p)
		v.Active = &pv
	}
	resp(w, a.log, v)
}

func (a *api) getActivePresetHandler(w http.ResponseWriter, r *http.Request) {
	p := a.farm.Active()
	if p == nil {
		respError(w, a.log, newNotFoundError("active preset"))
		return
	}
	resp(w, a.log, toPresetView(*p))
}

func (a *api) getActuatorsHandler(w http.ResponseWriter, r *http.Request) {
	resp(w, a.log, toActuatorView(a.farm.Actuators()))
}

func (a *api) getSensorDataHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, verr := pageParams(r.URL.Query())
	if verr != nil {
		respError(w, a.log, *verr)
		return
	}

	rs, err := a.farm.History(r.Context())
	if err != nil {
		a.log.Errorf("func getSensorDataHandler: func History: %s", err)
		respError(w, a.log, fromEngineError(err))
		return
	}

	total := uint(len(rs))
	from := offset
	if from > total {
		from = total
	}
	to := from + limit
	if to > total {
		to = total
	}

	vs := make([]readingView, 0, to-from)
	for _, rd := range rs[from:to] {
		vs = append(vs, toReadingView(rd))
	}
	resp(w, a.log, vs, Pagination{ResultCount: total, Limit: limit, Offset: offset})
}

func (a *api) getDailySensorDataHandler(w http.ResponseWriter, r *http.Request) {
	ds, err := a.farm.Daily(r.Context())
	if err != nil {
		a.log.Errorf("func getDailySensorDataHandler: func Daily: %s", err)
		respError(w, a.log, fromEngineError(err))
		return
	}
	vs := make([]dayView, 0, len(ds))
	for _, d := range ds {
		vs = append(vs, toDayView(d))
	}
	resp(w, a.log, vs)
}

func (a *api) postAdviceHandler(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respError(w, a.log, newBadRequestError("body must be a JSON object"))
		return
	}
	crop := strings.TrimSpace(req.Crop)
	if crop == "" {
		respError(w, a.log, newValidationError(url.Values{"crop": {"crop is missing"}}))
		return
	}
	if a.advisor == nil {
		respError(w, a.log, newServiceError())
		return
	}

	answer, err := a.advisor.Ask(r.Context(), crop)
	if err != nil {
		a.log.Errorf("func postAdviceHandler: func Ask: %s", err)
	}
	resp(w, a.log, adviceView{Crop: crop, Answer: answer, Degraded: err != nil})
}

func pageParams(q url.Values) (uint, uint, *validationError) {
	errs := url.Values{}
	limit := uint(defaultLimit)
	var offset uint

	if s := q.Get("limit"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		switch {
		case err != nil:
			errs.Add("limit", "limit must be a non-negative integer")
		case n == 0 || n > maxLimit:
			errs.Add("limit", "limit must be between 1 and "+strconv.Itoa(maxLimit))
		default:
			limit = uint(n)
		}
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			errs.Add("offset", "offset must be a non-negative integer")
		} else {
			offset = uint(n)
		}
	}

	if len(errs) > 0 {
		verr := newValidationError(errs)
		return 0, 0, &verr
	}
	return limit, offset, nil
}

func toPresetView(p model.Preset) presetView {
	return presetView{
		CropName:        p.Name,
		TempMax:         num(p.Temp.Max),
		TempMin:         num(p.Temp.Min),
		HumidityMax:     num(p.Humidity.Max),
		HumidityMin:     num(p.Humidity.Min),
		SoilMoistureMax: num(p.SoilMoisture.Max),
		SoilMoistureMin: num(p.SoilMoisture.Min),
	}
}

func toActuatorView(s model.ActuatorState) actuatorView {
	return actuatorView{
		LEDStatus:       s.LEDStatus,
		FanStatus:       s.FanStatus,
		ServoMotorAngle: num(s.ServoMotorAngle),
	}
}

func toReadingView(r model.Reading) readingView {
	return readingView{
		Time:             r.Time.UTC(),
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

func toDayView(d model.DaySummary) dayView {
	return dayView{
		Date:            d.Date.Format(dateLayout),
		AvgTemperature:  num(d.AvgTemperature),
		AvgHumidity:     num(d.AvgHumidity),
		AvgSoilMoisture: num(d.AvgSoilMoisture),
		AvgLight:        num(d.AvgLight),
		AvgSolar:        num(d.AvgSolar),
	}
}

// num maps non-finite values to JSON null.
func num(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
