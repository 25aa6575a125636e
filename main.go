package main

import (
	"context"
	log_ "log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kostiamol/farmms/advice"
	"github.com/kostiamol/farmms/api"
	"github.com/kostiamol/farmms/cfg"
	"github.com/kostiamol/farmms/event"
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/metric"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/store"
	"github.com/kostiamol/farmms/svc"
	"github.com/kostiamol/farmms/trace"
)

func init() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log_.Fatalf("func Load: %s", err)
	}
}

func main() {
	conf, err := cfg.NewConfig()
	if err != nil {
		log_.Fatalf("func NewConfig: %s", err)
	}

	logOpts := []log.Option{log.WithSampling()}
	if conf.Service.LogFormat == "console" {
		logOpts = append(logOpts, log.WithConsole())
	}
	l := log.New(conf.Service.AppID, conf.Service.LogLevel, logOpts...)
	m := metric.New(conf.Service.AppID, nil)
	ctrl := svc.NewCtrl()

	if conf.TraceAgent.Enabled() {
		flush, err := trace.Init(&trace.Cfg{
			ServiceName:   conf.Service.AppID,
			AgentEndpoint: conf.TraceAgent.Addr.String(),
			SampleRate:    conf.TraceAgent.SampleRate,
		})
		if err != nil {
			l.Errorf("func Init: %s", err)
		} else {
			defer flush()
		}
	}

	initTimeout := conf.Service.RetryTimeout * time.Duration(conf.Service.RetryAttempts+1)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	st, err := store.New(ctx, &store.Cfg{
		Kind:             conf.Store.Kind,
		Addr:             conf.Store.Addr.String(),
		Password:         conf.Store.Password,
		MaxIdlePoolConns: conf.Store.MaxIdlePoolConns,
		IdleTimeout:      conf.Store.IdleTimeout,
		Retry:            conf.Service.RetryTimeout,
		Path:             conf.Store.Path,
		Limit:            conf.Store.HistoryLimit,
		Log:              l,
	})
	cancel()
	if err != nil {
		l.With("event", log.EventStoreInit).Fatalf("func New: %s", err)
	}
	defer st.Close() // nolint

	registry := svc.NewRegistry(&svc.RegistryCfg{
		Log:       l,
		Metric:    m,
		QueueSize: conf.Service.QueueSize,
	})
	hub := svc.NewHub(&svc.HubCfg{
		Log:      l,
		Metric:   m,
		Registry: registry,
	})

	var commands chan *model.Preset
	if conf.Controller.Transport == cfg.TransportNATS || conf.Controller.Transport == cfg.TransportMQTT {
		buf := conf.Controller.CommandBuffer
		if buf <= 0 {
			buf = 16
		}
		commands = make(chan *model.Preset, buf)
	}

	engine := svc.NewEngine(&svc.EngineCfg{
		Log:      l,
		Metric:   m,
		Store:    st,
		Registry: registry,
		Hub:      hub,
		Commands: commands,
	})
	if err := engine.Load(context.Background()); err != nil {
		l.With("event", log.EventStoreInit).Fatalf("func Load: %s", err)
	}

	// service initializations
	streamSvc := svc.NewStreamService(
		&svc.StreamServiceCfg{
			Log:       l,
			Ctrl:      ctrl,
			Metric:    m,
			Engine:    engine,
			Registry:  registry,
			PortWS:    conf.Service.PortWebSocket,
			ReadLimit: conf.Service.WSReadLimit,
			PongWait:  conf.Service.WSPongWait,
			WriteWait: conf.Service.WSWriteWait,
		})
	go streamSvc.Run()

	if link := newLink(conf, l); link != nil {
		linkSvc := svc.NewLinkService(
			&svc.LinkServiceCfg{
				Log:      l,
				Ctrl:     ctrl,
				Metric:   m,
				Link:     link,
				Ingester: engine,
				SubChan:  commands,
				Retry:    conf.Service.RetryTimeout,
			})
		go linkSvc.Run()
	}

	var advisor api.Advisor
	if conf.Advice.Enabled() {
		advisor = advice.New(&advice.Cfg{
			Endpoint: conf.Advice.Endpoint,
			APIKey:   conf.Advice.APIKey,
			Model:    conf.Advice.Model,
			Timeout:  conf.Advice.Timeout,
			RetryMax: conf.Advice.RetryMax,
			Log:      l,
		})
	}

	apiSvc := api.New(
		&api.Cfg{
			Log:         l,
			Ctrl:        ctrl,
			Metric:      m,
			Farm:        engine,
			Advisor:     advisor,
			PortREST:    conf.Service.PortREST,
			TLSHost:     conf.Service.TLSHost,
			TLSCacheDir: conf.Service.TLSCacheDir,
		})
	go apiSvc.Run()

	if conf.Mesh.Enabled() {
		meshAgent := svc.NewMeshAgent(
			&svc.MeshAgentCfg{
				Name:  conf.Mesh.Name,
				Port:  int(conf.Service.PortWebSocket),
				TTL:   conf.Mesh.TTL,
				Log:   l,
				Ctrl:  ctrl,
				Check: st.Check,
			})
		go meshAgent.Run()
	}

	ctrl.Wait(conf.Service.TerminationTimeout)

	l.With("event", log.EventMSShutdown).Infof("%s is down", conf.Service.AppID)
	_ = l.Flush()
}

func newLink(conf *cfg.Config, l log.Logger) svc.ControllerLink {
	c := conf.Controller
	switch c.Transport {
	case cfg.TransportNATS:
		return event.NewNATS(&event.NATSCfg{
			Addr:             c.Addr,
			TelemetrySubject: c.TelemetrySubject,
			CommandSubject:   c.CommandSubject,
			RetryTimeout:     conf.Service.RetryTimeout,
			RetryAttempts:    conf.Service.RetryAttempts,
			Log:              l,
		})
	case cfg.TransportMQTT:
		clientID := c.ClientID
		if clientID == "" {
			clientID = conf.Service.AppID
		}
		return event.NewMQTT(&event.MQTTCfg{
			BrokerURL:      c.Addr,
			ClientID:       clientID,
			Username:       c.Username,
			Password:       c.Password,
			TelemetryTopic: c.TelemetrySubject,
			CommandTopic:   c.CommandSubject,
			QoS:            c.QoS,
			ConnectTimeout: conf.Service.RetryTimeout,
			Log:            l,
		})
	default:
		return nil
	}
}

