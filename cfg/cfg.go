// Package cfg reads the service configuration from environment variables.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Addr holds a host and a port.
type Addr struct {
	Host string
	Port uint64
}

// String returns the addr in host:port form.
func (a Addr) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Config holds the whole service configuration.
type Config struct {
	Service    Service
	Store      Store
	Controller Controller
	Advice     Advice
	Mesh       Mesh
	TraceAgent TraceAgent
}

// NewConfig reads and validates the configuration.
func NewConfig() (*Config, error) {
	c := &Config{
		Service: Service{
			AppID:              os.Getenv("APP_ID"),
			LogLevel:           os.Getenv("LOG_LEVEL"),
			LogFormat:          os.Getenv("LOG_FORMAT"),
			RetryTimeout:       durationEnv("RETRY_TIMEOUT"),
			RetryAttempts:      uint32(uintEnv("RETRY_ATTEMPTS")),
			PortREST:           uintEnv("PORT_REST"),
			PortWebSocket:      uintEnv("PORT_WEBSOCKET"),
			TerminationTimeout: durationEnv("TERMINATION_TIMEOUT"),
			QueueSize:          int(uintEnv("QUEUE_SIZE")),
			TLSHost:            os.Getenv("TLS_HOST"),
			TLSCacheDir:        os.Getenv("TLS_CACHE_DIR"),
			WSReadLimit:        int64(uintEnv("WS_READ_LIMIT")),
			WSPongWait:         durationEnv("WS_PONG_WAIT"),
			WSWriteWait:        durationEnv("WS_WRITE_WAIT"),
		},
		Store: Store{
			Kind: os.Getenv("STORE_KIND"),
			Addr: Addr{
				Host: os.Getenv("STORE_HOST"),
				Port: uintEnv("STORE_PORT"),
			},
			Password:         os.Getenv("STORE_PASSWORD"),
			Path:             os.Getenv("STORE_PATH"),
			HistoryLimit:     int(uintEnv("STORE_HISTORY_LIMIT")),
			MaxIdlePoolConns: int(uintEnv("STORE_MAX_IDLE_CONNS")),
			IdleTimeout:      durationEnv("STORE_IDLE_TIMEOUT"),
		},
		Controller: Controller{
			Transport:        os.Getenv("CONTROLLER_TRANSPORT"),
			Addr:             os.Getenv("CONTROLLER_ADDR"),
			TelemetrySubject: os.Getenv("CONTROLLER_TELEMETRY_SUBJECT"),
			CommandSubject:   os.Getenv("CONTROLLER_COMMAND_SUBJECT"),
			ClientID:         os.Getenv("CONTROLLER_CLIENT_ID"),
			Username:         os.Getenv("CONTROLLER_USERNAME"),
			Password:         os.Getenv("CONTROLLER_PASSWORD"),
			QoS:              byte(uintEnv("CONTROLLER_QOS")),
			CommandBuffer:    int(uintEnv("CONTROLLER_COMMAND_BUFFER")),
		},
		Advice: Advice{
			Endpoint: os.Getenv("ADVICE_ENDPOINT"),
			APIKey:   os.Getenv("ADVICE_API_KEY"),
			Model:    os.Getenv("ADVICE_MODEL"),
			Timeout:  durationEnv("ADVICE_TIMEOUT"),
			RetryMax: int(uintEnv("ADVICE_RETRY_MAX")),
		},
		Mesh: Mesh{
			Name: os.Getenv("MESH_NAME"),
			TTL:  durationEnv("MESH_TTL"),
		},
		TraceAgent: TraceAgent{
			Addr: Addr{
				Host: os.Getenv("TRACE_AGENT_HOST"),
				Port: uintEnv("TRACE_AGENT_PORT"),
			},
			SampleRate: floatEnv("TRACE_SAMPLE_RATE"),
		},
	}
	if c.Service.QueueSize == 0 {
		c.Service.QueueSize = DefaultQueueSize
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if err := c.Service.validate(); err != nil {
		return fmt.Errorf("service: %s", err)
	}
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %s", err)
	}
	if err := c.Controller.validate(); err != nil {
		return fmt.Errorf("controller: %s", err)
	}
	if err := c.Advice.validate(); err != nil {
		return fmt.Errorf("advice: %s", err)
	}
	if err := c.Mesh.validate(); err != nil {
		return fmt.Errorf("mesh: %s", err)
	}
	if err := c.TraceAgent.validate(); err != nil {
		return fmt.Errorf("trace agent: %s", err)
	}
	return nil
}

// uintEnv returns 0 when the variable is unset or not a number.
func uintEnv(key string) uint64 {
	v, err := strconv.ParseUint(os.Getenv(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// floatEnv returns 0 when the variable is unset or not a number.
func floatEnv(key string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0
	}
	return v
}

// durationEnv accepts both "1500ms" and a plain number of milliseconds.
func durationEnv(key string) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return 0
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	ms, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
