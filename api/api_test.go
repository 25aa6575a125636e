package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/metric"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/svc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFarm struct {
	presets   []model.Preset
	active    *model.Preset
	actuators model.ActuatorState
	readings  []model.Reading
	err       error
}

func (f *fakeFarm) Presets() []model.Preset { return f.presets }
func (f *fakeFarm) Active() *model.Preset { return f.active }
func (f *fakeFarm) Actuators() model.ActuatorState { return f.actuators }

func (f *fakeFarm) History(context.Context) ([]model.Reading, error) {
	return f.readings, f.err
}

func (f *fakeFarm) Daily(context.Context) ([]model.DaySummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.DaySummary{{
		Date:           time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		AvgTemperature: 21.5,
		AvgHumidity:    math.NaN(),
	}}, nil
}

type fakeAdvisor struct {
	answer string
	err    error
	asked  string
}

func (a *fakeAdvisor) Ask(_ context.Context, crop string) (string, error) {
	a.asked = crop
	return a.answer, a.err
}

func tomato() model.Preset {
	return model.Preset{
		Name:         "Tomato",
		Temp:         model.Range{Min: 18, Max: 27},
		Humidity:     model.Range{Min: 60, Max: 80},
		SoilMoisture: model.Range{Min: 30, Max: 60},
	}
}

func newTestServer(t *testing.T, f *fakeFarm, adv Advisor) *httptest.Server {
	a := New(&Cfg{
		Log:     log.NewNop(),
		Ctrl:    svc.NewCtrl(),
		Metric:  metric.New("farmms-test", prometheus.NewRegistry()),
		Farm:    f,
		Advisor: adv,
	})
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v interface{}) int {
	res, err := http.Get(url)
	require.Nil(t, err)
	defer res.Body.Close()
	require.Nil(t, json.NewDecoder(res.Body).Decode(v))
	return res.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeFarm{}, nil)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeFarm{}, nil)

	res, err := http.Get(srv.URL + "/metrics")
	require.Nil(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestGetPresets(t *testing.T) {
	p := tomato()
	srv := newTestServer(t, &fakeFarm{
		presets:   []model.Preset{p},
		active:    &p,
		actuators: model.ActuatorState{LEDStatus: true, ServoMotorAngle: 45},
	}, nil)

	var body struct {
		Data presetsView `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/presets", &body))
	require.Len(t, body.Data.Presets, 1)
	assert.Equal(t, "Tomato", body.Data.Presets[0].CropName)
	assert.Equal(t, 27.0, *body.Data.Presets[0].TempMax)
	require.NotNil(t, body.Data.Active)
	assert.Equal(t, "Tomato", body.Data.Active.CropName)
	assert.True(t, body.Data.Actuators.LEDStatus)
	assert.Equal(t, 45.0, *body.Data.Actuators.ServoMotorAngle)
}

func TestGetActivePresetNone(t *testing.T) {
	srv := newTestServer(t, &fakeFarm{}, nil)

	var body map[string]interface{}
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/v1/presets/active", &body))
	assert.Equal(t, ErrNotFound, body["code"])
}

func TestGetSensorDataPagination(t *testing.T) {
	start := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	var rs []model.Reading
	for i := 0; i < 5; i++ {
		rs = append(rs, model.Reading{Time: start.Add(time.Duration(i) * time.Minute), Temperature: float64(20 + i)})
	}
	rs[3].Humidity = math.NaN()
	srv := newTestServer(t, &fakeFarm{readings: rs}, nil)

	var body struct {
		Data []readingView `json:"data"`
		Meta struct {
			Pagination map[string]uint `json:"pagination"`
		} `json:"meta"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/sensor-data?limit=2&offset=2", &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, 22.0, *body.Data[0].Temperature)
	assert.Nil(t, body.Data[1].Humidity)
	assert.Equal(t, uint(5), body.Meta.Pagination["total"])
	assert.Equal(t, uint(2), body.Meta.Pagination["limit"])
	assert.Equal(t, uint(2), body.Meta.Pagination["offset"])

	body.Data = nil
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/sensor-data?offset=50", &body))
	assert.Empty(t, body.Data)
}

func TestGetSensorDataBadParams(t *testing.T) {
	srv := newTestServer(t, &fakeFarm{}, nil)

	var body map[string]interface{}
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/sensor-data?limit=-1", &body))
	assert.Equal(t, ErrBadParam, body["code"])

	body = nil
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/sensor-data?limit=0", &body))
}

func TestGetSensorDataStoreDown(t *testing.T) {
	srv := newTestServer(t, &fakeFarm{err: &svc.StoreError{Err: errors.New("connection refused")}}, nil)

	var body map[string]interface{}
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/v1/sensor-data", &body))
	assert.Equal(t, ErrUnavailable, body["code"])

	body = nil
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/v1/sensor-data/daily", &body))
}

func TestGetDailySensorData(t *testing.T) {
	srv := newTestServer(t, &fakeFarm{}, nil)

	var body struct {
		Data []dayView `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/sensor-data/daily", &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "2024-10-01", body.Data[0].Date)
	assert.Equal(t, 21.5, *body.Data[0].AvgTemperature)
	assert.Nil(t, body.Data[0].AvgHumidity)
}

func postAdvice(t *testing.T, url, body string, v interface{}) int {
	res, err := http.Post(url+"/v1/advice", "application/json", strings.NewReader(body))
	require.Nil(t, err)
	defer res.Body.Close()
	require.Nil(t, json.NewDecoder(res.Body).Decode(v))
	return res.StatusCode
}

func TestPostAdvice(t *testing.T) {
	adv := &fakeAdvisor{answer: "최고기온 27도"}
	srv := newTestServer(t, &fakeFarm{}, adv)

	var body struct {
		Data adviceView `json:"data"`
	}
	assert.Equal(t, http.StatusOK, postAdvice(t, srv.URL, `{"crop":" 토마토 "}`, &body))
	assert.Equal(t, "토마토", adv.asked)
	assert.Equal(t, "최고기온 27도", body.Data.Answer)
	assert.False(t, body.Data.Degraded)
}

func TestPostAdviceFallback(t *testing.T) {
	adv := &fakeAdvisor{answer: "응답을 처리하는 중 오류가 발생했습니다.", err: errors.New("upstream status 500")}
	srv := newTestServer(t, &fakeFarm{}, adv)

	var body struct {
		Data adviceView `json:"data"`
	}
	assert.Equal(t, http.StatusOK, postAdvice(t, srv.URL, `{"crop":"basil"}`, &body))
	assert.Equal(t, adv.answer, body.Data.Answer)
	assert.True(t, body.Data.Degraded)
}

func TestPostAdviceValidation(t *testing.T) {
	srv := newTestServer(t, &fakeFarm{}, &fakeAdvisor{})

	var body map[string]interface{}
	assert.Equal(t, http.StatusBadRequest, postAdvice(t, srv.URL, `{"crop":"  "}`, &body))
	assert.Equal(t, ErrBadParam, body["code"])

	body = nil
	assert.Equal(t, http.StatusBadRequest, postAdvice(t, srv.URL, `not json`, &body))
	assert.Equal(t, ErrBadRequest, body["code"])
}

func TestResponsesAreCompressed(t *testing.T) {
	srv := newTestServer(t, &fakeFarm{presets: []model.Preset{tomato()}}, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/presets", nil)
	require.Nil(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	res, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	defer res.Body.Close()
	assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
}

func TestFromEngineError(t *testing.T) {
	nf, ok := fromEngineError(&svc.NotFoundError{Name: "Tomato"}).(apiError)
	require.True(t, ok)
	assert.Equal(t, ErrNotFound, nf.Code)
	assert.Equal(t, "preset Tomato not found", nf.Message)

	v, ok := fromEngineError(&svc.ValidationError{What: "preset", Err: errors.New("preset name is missing")}).(validationError)
	require.True(t, ok)
	assert.Equal(t, []string{"preset name is missing"}, v.GlobalMessage)

	other := errors.New("boom")
	assert.Equal(t, other, fromEngineError(other))
}
