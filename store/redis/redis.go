// Package redis provides a store based on Redis: the history is a sorted set scored by capture time
// and the presets are a hash keyed by crop name.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"github.com/garyburd/redigo/redis"
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/model"
	"github.com/pkg/errors"
)

const (
	readingsKey = "farm:readings"
	presetsKey  = "farm:presets"
)

type (
	// Cfg is used to initialize an instance of Redis.
	Cfg struct {
		Addr             string
		Password         string
		MaxIdlePoolConns int
		IdleTimeout      time.Duration
		Retry            time.Duration
		Limit            int
		Log              log.Logger
	}

	// Redis is used to provide a storage based on Redis.
	Redis struct {
		pool  *redis.Pool
		retry time.Duration
		limit int
		log   log.Logger
	}

	readingRecord struct {
		Time             int64   `json:"ts"`
		Temperature      float64 `json:"temperature"`
		Humidity         float64 `json:"humidity"`
		SoilMoisture     float64 `json:"soil_moisture"`
		LightSensorValue float64 `json:"light_sensor_value"`
		SolarSensorValue float64 `json:"solar_sensor_value"`
		LEDStatus        bool    `json:"led_status"`
		FanStatus        bool    `json:"fan_status"`
		ServoMotorAngle  float64 `json:"servo_motor_angle"`
	}

	presetRecord struct {
		Name            string  `json:"crop_name"`
		TempMax         float64 `json:"temp_max"`
		TempMin         float64 `json:"temp_min"`
		HumidityMax     float64 `json:"humidity_max"`
		HumidityMin     float64 `json:"humidity_min"`
		SoilMoistureMax float64 `json:"soil_moisture_max"`
		SoilMoistureMin float64 `json:"soil_moisture_min"`
	}
)

// New creates a new instance of Redis store. A positive Limit caps the history length.
func New(c *Cfg) *Redis {
	r := &Redis{
		retry: c.Retry,
		limit: c.Limit,
		log:   c.Log.With("component", "store", "type", "redis"),
	}
	if r.retry <= 0 {
		r.retry = time.Second
	}
	r.pool = &redis.Pool{
		MaxIdle:     c.MaxIdlePoolConns,
		IdleTimeout: c.IdleTimeout,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{}
			if c.Password != "" {
				opts = append(opts, redis.DialPassword(c.Password))
			}
			return redis.Dial("tcp", c.Addr, opts...)
		},
		TestOnBorrow: func(conn redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := conn.Do("PING")
			return err
		},
	}
	return r
}

// Init waits until Redis answers PING, retrying with a random pause, or until ctx is done.
func (r *Redis) Init(ctx context.Context) error {
	for {
		ok, err := r.Check()
		if ok {
			r.log.With("event", log.EventStoreInit).Infof("connected")
			return nil
		}
		r.log.With("event", log.EventStoreInit).Errorf("func Init: Check() failed: %s", err)

		pause := time.Duration(rand.Int63n(int64(r.retry))) + time.Millisecond
		select {
		case <-time.After(pause):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "store: Init()")
		}
	}
}

// Check issues PING Redis command to check if Redis is ok.
func (r *Redis) Check() (bool, error) {
	conn := r.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the pool.
func (r *Redis) Close() error {
	return r.pool.Close()
}

// AppendReading adds rd to the history sorted set.
func (r *Redis) AppendReading(_ context.Context, rd model.Reading) error {
	member, err := encodeReading(rd)
	if err != nil {
		return errors.Wrap(err, "store: AppendReading()")
	}

	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("ZADD", readingsKey, rd.Time.UnixNano(), member); err != nil {
		return errors.Wrap(err, "store: AppendReading(): ZADD failed")
	}
	if r.limit > 0 {
		if _, err := conn.Do("ZREMRANGEBYRANK", readingsKey, 0, -r.limit-1); err != nil {
			return errors.Wrap(err, "store: AppendReading(): ZREMRANGEBYRANK failed")
		}
	}
	return nil
}

// Readings returns the whole history ordered by time.
func (r *Redis) Readings(context.Context) ([]model.Reading, error) {
	conn := r.pool.Get()
	defer conn.Close()

	members, err := redis.ByteSlices(conn.Do("ZRANGEBYSCORE", readingsKey, "-inf", "+inf"))
	if err != nil {
		return nil, errors.Wrap(err, "store: Readings(): ZRANGEBYSCORE failed")
	}

	rs := make([]model.Reading, 0, len(members))
	for _, m := range members {
		rd, err := decodeReading(m)
		if err != nil {
			r.log.Errorf("func Readings: %s", err)
			continue
		}
		rs = append(rs, rd)
	}
	return rs, nil
}

// Presets returns every stored preset ordered by name.
func (r *Redis) Presets(context.Context) ([]model.Preset, error) {
	conn := r.pool.Get()
	defer conn.Close()

	values, err := redis.ByteSlices(conn.Do("HVALS", presetsKey))
	if err != nil {
		return nil, errors.Wrap(err, "store: Presets(): HVALS failed")
	}

	ps := make([]model.Preset, 0, len(values))
	for _, v := range values {
		p, err := decodePreset(v)
		if err != nil {
			r.log.Errorf("func Presets: %s", err)
			continue
		}
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
	return ps, nil
}

// SavePreset inserts or replaces p.
func (r *Redis) SavePreset(_ context.Context, p model.Preset) error {
	v, err := encodePreset(p)
	if err != nil {
		return errors.Wrap(err, "store: SavePreset()")
	}

	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("HSET", presetsKey, p.Name, v); err != nil {
		return errors.Wrap(err, "store: SavePreset(): HSET failed")
	}
	return nil
}

// DeletePreset removes the named preset.
func (r *Redis) DeletePreset(_ context.Context, name string) error {
	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("HDEL", presetsKey, name); err != nil {
		return errors.Wrap(err, "store: DeletePreset(): HDEL failed")
	}
	return nil
}

func encodeReading(r model.Reading) ([]byte, error) {
	return json.Marshal(readingRecord{
		Time:             r.Time.UnixNano(),
		Temperature:      r.Temperature,
		Humidity:         r.Humidity,
		SoilMoisture:     r.SoilMoisture,
		LightSensorValue: r.LightSensorValue,
		SolarSensorValue: r.SolarSensorValue,
		LEDStatus:        r.LEDStatus,
		FanStatus:        r.FanStatus,
		ServoMotorAngle:  r.ServoMotorAngle,
	})
}

func decodeReading(b []byte) (model.Reading, error) {
	var rec readingRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.Reading{}, errors.Wrap(err, "decodeReading")
	}
	return model.Reading{
		Time:             time.Unix(0, rec.Time).UTC(),
		Temperature:      rec.Temperature,
		Humidity:         rec.Humidity,
		SoilMoisture:     rec.SoilMoisture,
		LightSensorValue: rec.LightSensorValue,
		SolarSensorValue: rec.SolarSensorValue,
		LEDStatus:        rec.LEDStatus,
		FanStatus:        rec.FanStatus,
		ServoMotorAngle:  rec.ServoMotorAngle,
	}, nil
}

func encodePreset(p model.Preset) ([]byte, error) {
	return json.Marshal(presetRecord{
		Name:            p.Name,
		TempMax:         p.Temp.Max,
		TempMin:         p.Temp.Min,
		HumidityMax:     p.Humidity.Max,
		HumidityMin:     p.Humidity.Min,
		SoilMoistureMax: p.SoilMoisture.Max,
		SoilMoistureMin: p.SoilMoisture.Min,
	})
}

func decodePreset(b []byte) (model.Preset, error) {
	var rec presetRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.Preset{}, errors.Wrap(err, "decodePreset")
	}
	return model.Preset{
		Name:         rec.Name,
		Temp:         model.Range{Min: rec.TempMin, Max: rec.TempMax},
		Humidity:     model.Range{Min: rec.HumidityMin, Max: rec.HumidityMax},
		SoilMoisture: model.Range{Min: rec.SoilMoistureMin, Max: rec.SoilMoistureMax},
	}, nil
}
