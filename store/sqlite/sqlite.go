// Package sqlite provides a single-file store based on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/model"
	_ "github.com/mattn/go-sqlite3" // driver
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	temperature REAL NOT NULL,
	humidity REAL NOT NULL,
	soil_moisture REAL NOT NULL,
	light_sensor_value REAL NOT NULL,
	solar_sensor_value REAL NOT NULL,
	led_status INTEGER NOT NULL,
	fan_status INTEGER NOT NULL,
	servo_motor_angle REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS readings_ts ON readings (ts);
CREATE TABLE IF NOT EXISTS presets (
	crop_name TEXT PRIMARY KEY,
	temp_max REAL NOT NULL,
	temp_min REAL NOT NULL,
	humidity_max REAL NOT NULL,
	humidity_min REAL NOT NULL,
	soil_moisture_max REAL NOT NULL,
	soil_moisture_min REAL NOT NULL
);`

type (
	// Cfg is used to initialize an instance of SQLite.
	Cfg struct {
		Path  string
		Limit int
		Log   log.Logger
	}

	// SQLite is used to provide a storage based on an SQLite database file.
	SQLite struct {
		db    *sql.DB
		limit int
		log   log.Logger
	}
)

// New opens the database at c.Path and creates the schema. ":memory:" gives a private in-memory
// database.
func New(c *Cfg) (*SQLite, error) {
	db, err := sql.Open("sqlite3", c.Path)
	if err != nil {
		return nil, errors.Wrap(err, "store: New(): Open() failed")
	}
	// one connection serializes writers and keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "store: New(): schema")
	}

	l := c.Log
	if l == nil {
		l = log.NewNop()
	}
	s := &SQLite{db: db, limit: c.Limit, log: l.With("component", "store", "type", "sqlite")}
	s.log.With("event", log.EventStoreInit).Infof("opened %s", c.Path)
	return s, nil
}

// Check pings the database.
func (s *SQLite) Check() (bool, error) {
	if err := s.db.Ping(); err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AppendReading inserts r into the history.
func (s *SQLite) AppendReading(ctx context.Context, r model.Reading) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO readings (ts, temperature, humidity, soil_moisture,
		light_sensor_value, solar_sensor_value, led_status, fan_status, servo_motor_angle)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Time.UnixNano(), r.Temperature, r.Humidity, r.SoilMoisture, r.LightSensorValue,
		r.SolarSensorValue, r.LEDStatus, r.FanStatus, r.ServoMotorAngle)
	if err != nil {
		return errors.Wrap(err, "store: AppendReading(): INSERT failed")
	}

	if s.limit > 0 {
		_, err = s.db.ExecContext(ctx, `DELETE FROM readings WHERE id NOT IN
			(SELECT id FROM readings ORDER BY ts DESC, id DESC LIMIT ?)`, s.limit)
		if err != nil {
			return errors.Wrap(err, "store: AppendReading(): DELETE failed")
		}
	}
	return nil
}

// Readings returns the whole history ordered by time.
func (s *SQLite) Readings(ctx context.Context) ([]model.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, temperature, humidity, soil_moisture,
		light_sensor_value, solar_sensor_value, led_status, fan_status, servo_motor_angle
		FROM readings ORDER BY ts, id`)
	if err != nil {
		return nil, errors.Wrap(err, "store: Readings(): SELECT failed")
	}
	defer rows.Close()

	var rs []model.Reading
	for rows.Next() {
		var (
			r  model.Reading
			ts int64
		)
		err := rows.Scan(&ts, &r.Temperature, &r.Humidity, &r.SoilMoisture, &r.LightSensorValue,
			&r.SolarSensorValue, &r.LEDStatus, &r.FanStatus, &r.ServoMotorAngle)
		if err != nil {
			return nil, errors.Wrap(err, "store: Readings(): Scan() failed")
		}
		r.Time = time.Unix(0, ts).UTC()
		rs = append(rs, r)
	}
	return rs, errors.Wrap(rows.Err(), "store: Readings()")
}

// Presets returns every stored preset ordered by name.
func (s *SQLite) Presets(ctx context.Context) ([]model.Preset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT crop_name, temp_max, temp_min, humidity_max,
		humidity_min, soil_moisture_max, soil_moisture_min FROM presets ORDER BY crop_name`)
	if err != nil {
		return nil, errors.Wrap(err, "store: Presets(): SELECT failed")
	}
	defer rows.Close()

	var ps []model.Preset
	for rows.Next() {
		var p model.Preset
		err := rows.Scan(&p.Name, &p.Temp.Max, &p.Temp.Min, &p.Humidity.Max, &p.Humidity.Min,
			&p.SoilMoisture.Max, &p.SoilMoisture.Min)
		if err != nil {
			return nil, errors.Wrap(err, "store: Presets(): Scan() failed")
		}
		ps = append(ps, p)
	}
	return ps, errors.Wrap(rows.Err(), "store: Presets()")
}

// SavePreset inserts or replaces p.
func (s *SQLite) SavePreset(ctx context.Context, p model.Preset) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO presets (crop_name, temp_max, temp_min,
		humidity_max, humidity_min, soil_moisture_max, soil_moisture_min) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Temp.Max, p.Temp.Min, p.Humidity.Max, p.Humidity.Min, p.SoilMoisture.Max,
		p.SoilMoisture.Min)
	return errors.Wrap(err, "store: SavePreset()")
}

// DeletePreset removes the named preset.
func (s *SQLite) DeletePreset(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE crop_name = ?`, name)
	return errors.Wrap(err, "store: DeletePreset()")
}
