// Package api provides the REST surface of the farm service: read-only views of the shared state, the
// advice endpoint, health and metrics.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/metric"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/svc"
	"github.com/rs/cors"
	"golang.org/x/crypto/acme/autocert"
)

type (
	// FarmProvider is a contract for the provider of the shared farm state.
	FarmProvider interface {
		Presets() []model.Preset
		Active() *model.Preset
		Actuators() model.ActuatorState
		History(ctx context.Context) ([]model.Reading, error)
		Daily(ctx context.Context) ([]model.DaySummary, error)
	}

	// Advisor is a contract for the crop advice provider. It returns a displayable text even when
	// it fails.
	Advisor interface {
		Ask(ctx context.Context, crop string) (string, error)
	}

	// Cfg is used to initialize an instance of api.
	Cfg struct {
		Log      log.Logger
		Ctrl     svc.Ctrl
		Metric   *metric.Metric
		Farm     FarmProvider
		Advisor  Advisor
		PortREST uint64
		// TLSHost enables Let's Encrypt certificates for the given host.
		TLSHost     string
		TLSCacheDir string
	}

	// api serves the REST endpoints.
	api struct {
		log         log.Logger
		ctrl        svc.Ctrl
		metric      *metric.Metric
		farm        FarmProvider
		advisor     Advisor
		portREST    uint64
		tlsHost     string
		tlsCacheDir string
		router      *mux.Router
		srv         *http.Server
	}
)

// New creates and initializes a new instance of api.
func New(c *Cfg) *api { // nolint
	a := &api{
		log:         c.Log.With("component", "api"),
		ctrl:        c.Ctrl,
		metric:      c.Metric,
		farm:        c.Farm,
		advisor:     c.Advisor,
		portREST:    c.PortREST,
		tlsHost:     c.TLSHost,
		tlsCacheDir: c.TLSCacheDir,
		router:      mux.NewRouter(),
	}
	a.registerRoutes()
	return a
}

// Run launches the service by running goroutines for listening to the service termination and
// queries from the web client.
func (a *api) Run() {
	a.log.With("event", log.EventComponentStarted).Infof("rest port [%d]", a.portREST)

	defer func() {
		if r := recover(); r != nil {
			a.log.With("event", log.EventPanic).Errorf("func Run: %s", r)
			a.metric.ErrorCounter(log.EventPanic)
			a.terminate()
		}
	}()

	go a.listenToTermination()
	a.serveHTTP()
}

// Handler returns the REST router wrapped with CORS, proxy header handling and gzip compression.
func (a *api) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	return handlers.CompressHandler(handlers.ProxyHeaders(c.Handler(a.router)))
}

func (a *api) listenToTermination() {
	<-a.ctrl.StopChan
	a.terminate()
}

func (a *api) terminate() {
	if a.srv != nil {
		_ = a.srv.Close()
	}
	a.log.With("event", log.EventComponentShutdown).Info()
	_ = a.log.Flush()
	a.ctrl.Terminate()
}

func (a *api) registerRoutes() {
	middleware := []func(next http.HandlerFunc, name string, l log.Logger) http.HandlerFunc{
		requestLogger,
		traceSpan,
		a.metric.TimeTracker,
		a.recoverer,
	}

	a.registerRoute(http.MethodGet, "/health", a.health)
	a.registerRoute(http.MethodGet, "/metrics", a.metric.RouterHandlerHTTP())

	a.registerRoute(http.MethodGet, "/v1/presets", a.getPresetsHandler, middleware...)
	a.registerRoute(http.MethodGet, "/v1/presets/active", a.getActivePresetHandler, middleware...)
	a.registerRoute(http.MethodGet, "/v1/actuators", a.getActuatorsHandler, middleware...)
	a.registerRoute(http.MethodGet, "/v1/sensor-data", a.getSensorDataHandler, middleware...)
	a.registerRoute(http.MethodGet, "/v1/sensor-data/daily", a.getDailySensorDataHandler, middleware...)
	a.registerRoute(http.MethodPost, "/v1/advice", a.postAdviceHandler, middleware...)
}

func (a *api) serveHTTP() {
	a.srv = &http.Server{
		Handler: a.Handler(),
		Addr:    fmt.Sprintf(":%d", a.portREST),
	}

	var err error
	if a.tlsHost != "" {
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(a.tlsHost),
			Cache:      autocert.DirCache(a.tlsCacheDir),
		}
		a.srv.TLSConfig = &tls.Config{GetCertificate: m.GetCertificate}
		// allow autocert handle Let's Encrypt callbacks over http
		go func() {
			if err := http.ListenAndServe(":http", m.HTTPHandler(nil)); err != nil {
				a.log.Errorf("func ListenAndServe: acme: %s", err)
			}
		}()
		err = a.srv.ListenAndServeTLS("", "")
	} else {
		err = a.srv.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		a.log.Errorf("func ListenAndServe: %s", err)
		a.terminate()
	}
}
