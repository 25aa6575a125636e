package svc

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kostiamol/farmms/aggregate"
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/metric"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/proto"
	"github.com/kostiamol/farmms/trace"
	"github.com/pkg/errors"
)

var errLinkBusy = errors.New("controller command queue is full")

type (
	// EngineCfg is used to initialize an instance of Engine.
	EngineCfg struct {
		Log      log.Logger
		Metric   *metric.Metric
		Store    Storer
		Registry *Registry
		Hub      *Hub
		// Commands receives the active preset whenever it changes, nil when it is cleared. It may
		// be nil when the controller is reached over websocket only.
		Commands chan<- *model.Preset
		Clock    func() time.Time
	}

	// Engine owns the shared farm state and executes protocol requests against it. The preset
	// mapping, the active preset, the actuator state and the history append path are guarded by
	// one mutex; replies and broadcasts derived from them are enqueued while it is held.
	Engine struct {
		log        log.Logger
		metric     *metric.Metric
		store      Storer
		registry   *Registry
		hub        *Hub
		dispatcher *Dispatcher
		commands   chan<- *model.Preset
		now        func() time.Time

		mu        sync.Mutex
		presets   map[string]model.Preset
		active    string
		actuators model.ActuatorState
		latest    *proto.SensorData
	}
)

// NewEngine creates and initializes a new instance of Engine and subscribes its request handlers.
func NewEngine(c *EngineCfg) *Engine {
	l := c.Log
	if l == nil {
		l = log.NewNop()
	}
	now := c.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	e := &Engine{
		log:        l.With("component", "engine"),
		metric:     c.Metric,
		store:      c.Store,
		registry:   c.Registry,
		hub:        c.Hub,
		dispatcher: NewDispatcher(),
		commands:   c.Commands,
		now:        now,
		presets:    make(map[string]model.Preset),
	}

	e.dispatcher.Subscribe(proto.TypeGetAllCropData, e.handleGetAllCropData)
	e.dispatcher.Subscribe(proto.TypeSelectCropData, e.handleSelectCropData)
	e.dispatcher.Subscribe(proto.TypeAddCropPreset, e.handleAddCropPreset)
	e.dispatcher.Subscribe(proto.TypeDeleteCropPreset, e.handleDeleteCropPreset)
	e.dispatcher.Subscribe(proto.TypeGetAllSensorData, e.handleGetAllSensorData)
	e.dispatcher.Subscribe(proto.TypeGetDailySensorData, e.handleGetDailySensorData)
	e.dispatcher.Subscribe(proto.TypeSensorData, e.handleSensorData)
	return e
}

// Dispatcher exposes the message router so other components can observe inbound traffic.
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Load fills the preset mapping from the store.
func (e *Engine) Load(ctx context.Context) error {
	presets, err := e.store.Presets(ctx)
	if err != nil {
		return errors.Wrap(err, "func Load: Presets() failed")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range presets {
		e.presets[p.Name] = p
	}
	e.log.With("event", log.EventStoreInit).Infof("loaded %d presets", len(presets))
	return nil
}

// Handle decodes one inbound frame and dispatches it. A malformed or unsupported frame is dropped
// and answered with an error reply; the connection stays open.
func (e *Engine) Handle(ctx context.Context, from ConnID, data []byte) {
	m, err := proto.Decode(data)
	if err != nil {
		e.log.With("event", log.EventMsgMalformed, "conn", from).Warnf("func Handle: %s", err)
		e.metric.ErrorCounter(log.EventMsgMalformed)
		e.reply(from, proto.Error{Reason: proto.ReasonMalformed})
		return
	}

	ctx, span := trace.SpanFromMessage(ctx, string(from), string(m.Type()))
	defer span.End()

	e.metric.Inbound(string(m.Type()))
	if e.dispatcher.Dispatch(ctx, from, m) == 0 {
		e.log.With("conn", from).Debugf("func Handle: no handler for %s", m.Type())
		e.reply(from, proto.Error{Reason: proto.ReasonUnsupported})
	}
}

// Attach backfills a freshly registered connection with the latest live push and the active preset.
func (e *Engine) Attach(p *Peer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.latest != nil {
		e.reply(p.ID, *e.latest)
	}
	if a, ok := e.presets[e.active]; ok && e.active != "" {
		e.reply(p.ID, proto.CropData{Preset: &a})
	}
}

// Presets returns a snapshot of the preset mapping ordered by name.
func (e *Engine) Presets() []model.Preset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.presetList()
}

// Active returns the active preset, nil when none is active.
func (e *Engine) Active() *model.Preset {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.presets[e.active]; ok && e.active != "" {
		return &p
	}
	return nil
}

// Actuators returns the latest actuator state pushed by the controller.
func (e *Engine) Actuators() model.ActuatorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actuators
}

// History returns the full reading history ordered by time.
func (e *Engine) History(ctx context.Context) ([]model.Reading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history(ctx)
}

// Daily returns the per-day aggregation of the history.
func (e *Engine) Daily(ctx context.Context) ([]model.DaySummary, error) {
	rs, err := e.History(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.Daily(rs), nil
}

// SelectPreset makes name the active preset, sends it to the controller and broadcasts cropData.
func (e *Engine) SelectPreset(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.presets[name]
	if !ok {
		return &NotFoundError{Name: name}
	}
	if err := e.command(&p); err != nil {
		return err
	}
	e.active = name
	e.log.With("event", log.EventPresetSelected).Infof("preset: %s", name)
	e.hub.Publish(proto.CropData{Preset: &p})
	return nil
}

// AddPreset inserts or replaces a preset and broadcasts the new preset list. Replacing the active
// preset re-sends it to the controller and broadcasts cropData.
func (e *Engine) AddPreset(ctx context.Context, p model.Preset) error {
	if err := p.Validate(); err != nil {
		return &ValidationError{What: "preset", Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.SavePreset(ctx, p); err != nil {
		return &StoreError{Err: err}
	}
	e.presets[p.Name] = p
	e.log.With("event", log.EventPresetAdded).Infof("preset: %s", p.Name)

	if e.active == p.Name {
		if err := e.command(&p); err != nil {
			e.log.Warnf("func AddPreset: %s", err)
		}
		e.hub.Publish(proto.CropData{Preset: &p})
	}
	e.hub.Publish(proto.AllCropData{Presets: e.presetList()})
	return nil
}

// DeletePreset removes a preset and broadcasts the new preset list. Deleting an absent preset is
// a NotFoundError and changes nothing. Deleting the active preset clears it.
func (e *Engine) DeletePreset(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.presets[name]; !ok {
		return &NotFoundError{Name: name}
	}
	if err := e.store.DeletePreset(ctx, name); err != nil {
		return &StoreError{Err: err}
	}
	delete(e.presets, name)
	e.log.With("event", log.EventPresetDeleted).Infof("preset: %s", name)

	if e.active == name {
		e.active = ""
		if err := e.command(nil); err != nil {
			e.log.Warnf("func DeletePreset: %s", err)
		}
		e.hub.Publish(proto.CropData{})
	}
	e.hub.Publish(proto.AllCropData{Presets: e.presetList()})
	return nil
}

// Ingest appends a live push to the history, records the actuator state and broadcasts the push
// unmodified. A history append failure is returned after the broadcast so live viewers keep
// receiving data while the store is down.
func (e *Engine) Ingest(ctx context.Context, s proto.SensorData) error {
	r := s.Reading(e.now())
	if !r.Finite() {
		return &ValidationError{What: "reading", Err: fmt.Errorf("non-finite sensor value")}
	}
	if math.IsNaN(s.ServoMotorAngle) || math.IsInf(s.ServoMotorAngle, 0) {
		return &ValidationError{What: "reading", Err: fmt.Errorf("non-finite servo angle")}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	appendErr := e.store.AppendReading(ctx, r)
	e.actuators = s.Actuators()
	e.latest = &s
	n := e.hub.Publish(s)
	e.log.With("event", log.EventReadingIngested).Debugf("delivered to %d connections", n)

	if appendErr != nil {
		e.metric.ErrorCounter(log.EventStoreFailed)
		return &StoreError{Err: appendErr}
	}
	return nil
}

func (e *Engine) handleGetAllCropData(_ context.Context, from ConnID, _ proto.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reply(from, proto.AllCropData{Presets: e.presetList()})
}

func (e *Engine) handleSelectCropData(_ context.Context, from ConnID, m proto.Message) {
	name := m.(proto.SelectCropData).CropName
	if err := e.SelectPreset(name); err != nil {
		e.replyErr(from, err, name)
	}
}

func (e *Engine) handleAddCropPreset(ctx context.Context, from ConnID, m proto.Message) {
	p := m.(proto.AddCropPreset).Preset
	if err := e.AddPreset(ctx, p); err != nil {
		e.replyErr(from, err, p.Name)
	}
}

func (e *Engine) handleDeleteCropPreset(ctx context.Context, from ConnID, m proto.Message) {
	name := m.(proto.DeleteCropPreset).CropName
	if err := e.DeletePreset(ctx, name); err != nil {
		e.replyErr(from, err, name)
	}
}

func (e *Engine) handleGetAllSensorData(ctx context.Context, from ConnID, _ proto.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, err := e.history(ctx)
	if err != nil {
		e.replyErr(from, err, "")
		return
	}
	e.reply(from, proto.AllSensorData{Readings: rs})
}

func (e *Engine) handleGetDailySensorData(ctx context.Context, from ConnID, _ proto.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, err := e.history(ctx)
	if err != nil {
		e.replyErr(from, err, "")
		return
	}
	e.reply(from, proto.DailySensorData{Days: aggregate.Daily(rs)})
}

func (e *Engine) handleSensorData(ctx context.Context, from ConnID, m proto.Message) {
	if err := e.Ingest(ctx, m.(proto.SensorData)); err != nil {
		e.replyErr(from, err, "")
	}
}

func (e *Engine) history(ctx context.Context) ([]model.Reading, error) {
	rs, err := e.store.Readings(ctx)
	if err != nil {
		return nil, &StoreError{Err: err}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Time.Before(rs[j].Time) })
	return rs, nil
}

func (e *Engine) presetList() []model.Preset {
	list := make([]model.Preset, 0, len(e.presets))
	for _, p := range e.presets {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// command hands the preset to the controller link without blocking.
func (e *Engine) command(p *model.Preset) error {
	if e.commands == nil {
		return nil
	}
	select {
	case e.commands <- p:
		return nil
	default:
		return errLinkBusy
	}
}

func (e *Engine) reply(to ConnID, m proto.Message) {
	if err := e.registry.Send(to, m); err != nil {
		e.log.With("conn", to).Debugf("func reply: %s: %s", m.Type(), err)
	}
}

func (e *Engine) replyErr(to ConnID, err error, cropName string) {
	reply := proto.Error{CropName: cropName}
	switch err := err.(type) {
	case *NotFoundError:
		reply.Reason = proto.ReasonNotFound
	case *ValidationError:
		reply.Reason = proto.ReasonInvalidPreset
		if err.What == "reading" {
			reply.Reason = proto.ReasonInvalidReading
		}
	case *StoreError:
		reply.Reason = proto.ReasonStoreUnavailable
		e.metric.ErrorCounter(log.EventStoreFailed)
	default:
		if errors.Cause(err) == errLinkBusy {
			reply.Reason = proto.ReasonLinkUnavailable
		} else {
			reply.Reason = err.Error()
		}
	}
	e.log.With("conn", to).Warnf("func replyErr: %s", err)
	e.reply(to, reply)
}
