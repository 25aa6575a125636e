// Package memory provides an in-process store for the reading history and the presets.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kostiamol/farmms/model"
)

// Memory keeps everything in process memory. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	readings []model.Reading
	presets  map[string]model.Preset
	limit    int
}

// New creates an empty store. A positive limit caps the history, evicting the oldest readings.
func New(limit int) *Memory {
	return &Memory{
		presets: make(map[string]model.Preset),
		limit:   limit,
	}
}

// AppendReading adds r to the history.
func (m *Memory) AppendReading(_ context.Context, r model.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.readings), func(i int) bool { return m.readings[i].Time.After(r.Time) })
	m.readings = append(m.readings, model.Reading{})
	copy(m.readings[i+1:], m.readings[i:])
	m.readings[i] = r

	if m.limit > 0 && len(m.readings) > m.limit {
		m.readings = append([]model.Reading(nil), m.readings[len(m.readings)-m.limit:]...)
	}
	return nil
}

// Readings returns a copy of the history ordered by time.
func (m *Memory) Readings(context.Context) ([]model.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Reading(nil), m.readings...), nil
}

// Presets returns every stored preset ordered by name.
func (m *Memory) Presets(context.Context) ([]model.Preset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ps := make([]model.Preset, 0, len(m.presets))
	for _, p := range m.presets {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
	return ps, nil
}

// SavePreset inserts or replaces p.
func (m *Memory) SavePreset(_ context.Context, p model.Preset) error {
	m.mu.Lock()
	m.presets[p.Name] = p
	m.mu.Unlock()
	return nil
}

// DeletePreset removes the named preset if present.
func (m *Memory) DeletePreset(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.presets, name)
	m.mu.Unlock()
	return nil
}

// Check always reports a healthy store.
func (m *Memory) Check() (bool, error) {
	return true, nil
}

// Close .
func (m *Memory) Close() error {
	return nil
}
