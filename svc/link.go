package svc

import (
	"context"
	"time"

	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/metric"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/proto"
)

type (
	// LinkServiceCfg is used to initialize an instance of linkService.
	LinkServiceCfg struct {
		Log      log.Logger
		Ctrl     Ctrl
		Metric   *metric.Metric
		Link     ControllerLink
		Ingester Ingester
		SubChan  <-chan *model.Preset
		Retry    time.Duration
	}

	// linkService bridges the engine and a controller reached over a broker: telemetry from the
	// link is ingested, preset changes from the engine are published to the link.
	linkService struct {
		log      log.Logger
		ctrl     Ctrl
		metric   *metric.Metric
		link     ControllerLink
		ingester Ingester
		subChan  <-chan *model.Preset
		retry    time.Duration
	}
)

// NewLinkService creates and initializes a new instance of linkService.
func NewLinkService(c *LinkServiceCfg) *linkService { // nolint
	retry := c.Retry
	if retry <= 0 {
		retry = time.Second
	}
	return &linkService{
		log:      c.Log.With("component", "link"),
		ctrl:     c.Ctrl,
		metric:   c.Metric,
		link:     c.Link,
		ingester: c.Ingester,
		subChan:  c.SubChan,
		retry:    retry,
	}
}

// Run launches the service by running goroutines for listening to the service termination,
// controller telemetry and preset changes.
func (s *linkService) Run() {
	s.log.With("event", log.EventComponentStarted).Infof("")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if r := recover(); r != nil {
			s.log.With("event", log.EventPanic).Errorf("func Run: %s", r)
			s.metric.ErrorCounter(log.EventPanic)
			cancel()
			s.ctrl.Terminate()
		}
	}()

	go s.listenToTermination(cancel)
	go s.listenToTelemetry(ctx)
	go s.listenToPresets(ctx)
}

func (s *linkService) listenToTermination(cancel context.CancelFunc) {
	<-s.ctrl.StopChan
	cancel()
	if err := s.link.Close(); err != nil {
		s.log.Errorf("func Close: %s", err)
	}
	s.log.With("event", log.EventComponentShutdown).Infof("")
	_ = s.log.Flush()
}

func (s *linkService) listenToTelemetry(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.With("event", log.EventPanic).Errorf("func listenToTelemetry: %s", r)
			s.metric.ErrorCounter(log.EventPanic)
			s.ctrl.Terminate()
		}
	}()

	for {
		err := s.link.Listen(ctx, func(d proto.SensorData) { s.ingest(ctx, d) })
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err != nil {
			s.log.With("event", log.EventLinkInit).Errorf("func Listen: %s", err)
			s.metric.ErrorCounter(log.EventLinkInit)
		}

		select {
		case <-time.After(s.retry):
		case <-ctx.Done():
			return
		}
	}
}

func (s *linkService) ingest(ctx context.Context, d proto.SensorData) {
	if err := s.ingester.Ingest(ctx, d); err != nil {
		s.log.Errorf("func Ingest: %s", err)
	}
}

func (s *linkService) listenToPresets(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.With("event", log.EventPanic).Errorf("func listenToPresets: %s", r)
			s.metric.ErrorCounter(log.EventPanic)
			s.ctrl.Terminate()
		}
	}()

	for {
		select {
		case p, ok := <-s.subChan:
			if !ok {
				return
			}
			if err := s.link.ApplyPreset(p); err != nil {
				s.log.Errorf("func ApplyPreset: %s", err)
				s.metric.ErrorCounter(log.EventLinkInit)
			}

		case <-ctx.Done():
			return
		}
	}
}
