package cfg

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validService() Service {
	return Service{
		AppID:              "farmms",
		LogLevel:           "debug",
		RetryAttempts:      5,
		RetryTimeout:       time.Duration(100),
		PortREST:           2222,
		PortWebSocket:      3333,
		TerminationTimeout: time.Second,
		QueueSize:          DefaultQueueSize,
	}
}

func TestNewConfig(t *testing.T) {
	os.Clearenv()
	_, err := NewConfig()
	assert.NotNil(t, err)
}

func TestNewConfigFromEnv(t *testing.T) {
	os.Clearenv()
	env := map[string]string{
		"APP_ID":                       "farmms",
		"LOG_LEVEL":                    "info",
		"RETRY_TIMEOUT":                "250ms",
		"RETRY_ATTEMPTS":               "3",
		"PORT_REST":                    "8080",
		"PORT_WEBSOCKET":               "8000",
		"TERMINATION_TIMEOUT":          "2000",
		"STORE_KIND":                   "sqlite",
		"STORE_PATH":                   "farm.db",
		"CONTROLLER_TRANSPORT":         "mqtt",
		"CONTROLLER_ADDR":              "tcp://localhost:1883",
		"CONTROLLER_TELEMETRY_SUBJECT": "farm/sensor",
		"CONTROLLER_COMMAND_SUBJECT":   "farm/crop",
		"CONTROLLER_QOS":               "1",
		"WS_READ_LIMIT":                "4096",
		"WS_PONG_WAIT":                 "30s",
		"WS_WRITE_WAIT":                "5s",
	}
	for k, v := range env {
		require.Nil(t, os.Setenv(k, v))
	}
	defer os.Clearenv()

	c, err := NewConfig()
	require.Nil(t, err)
	assert.Equal(t, 250*time.Millisecond, c.Service.RetryTimeout)
	assert.Equal(t, 2*time.Second, c.Service.TerminationTimeout)
	assert.Equal(t, uint64(8000), c.Service.PortWebSocket)
	assert.Equal(t, DefaultQueueSize, c.Service.QueueSize)
	assert.Equal(t, int64(4096), c.Service.WSReadLimit)
	assert.Equal(t, 30*time.Second, c.Service.WSPongWait)
	assert.Equal(t, 5*time.Second, c.Service.WSWriteWait)
	assert.Equal(t, "farm.db", c.Store.Path)
	assert.Equal(t, TransportMQTT, c.Controller.Transport)
	assert.Equal(t, byte(1), c.Controller.QoS)
	assert.False(t, c.Advice.Enabled())
	assert.False(t, c.Mesh.Enabled())
	assert.False(t, c.TraceAgent.Enabled())

	require.Nil(t, os.Setenv("QUEUE_SIZE", "256"))
	c, err = NewConfig()
	require.Nil(t, err)
	assert.Equal(t, 256, c.Service.QueueSize)

	require.Nil(t, os.Setenv("QUEUE_SIZE", "1"))
	_, err = NewConfig()
	assert.NotNil(t, err)
}

func TestConfig(t *testing.T) {
	c := &Config{
		Service: validService(),
		Store: Store{
			Kind: "redis",
			Addr: Addr{Host: "localhost", Port: 6379},
		},
	}
	assert.Nil(t, c.validate())

	c = &Config{}
	assert.NotNil(t, c.validate())
}

func TestServiceConfig(t *testing.T) {
	assert.Nil(t, validService().validate())

	broken := []func(s *Service){
		func(s *Service) { s.AppID = "" },
		func(s *Service) { s.LogLevel = "" },
		func(s *Service) { s.LogFormat = "xml" },
		func(s *Service) { s.RetryAttempts = 0 },
		func(s *Service) { s.RetryTimeout = 0 },
		func(s *Service) { s.PortREST = 0 },
		func(s *Service) { s.PortWebSocket = 0 },
		func(s *Service) { s.PortWebSocket = s.PortREST },
		func(s *Service) { s.TerminationTimeout = 0 },
		func(s *Service) { s.QueueSize = -1 },
		func(s *Service) { s.QueueSize = 0 },
		func(s *Service) { s.QueueSize = MinQueueSize - 1 },
		func(s *Service) { s.WSReadLimit = -1 },
		func(s *Service) { s.WSPongWait, s.WSWriteWait = time.Second, 2 * time.Second },
		func(s *Service) { s.TLSHost = "farm.example.com" },
	}
	for i, f := range broken {
		s := validService()
		f(&s)
		assert.NotNil(t, s.validate(), "case %d", i)
	}
}

func TestStoreConfig(t *testing.T) {
	assert.Nil(t, Store{}.validate())
	assert.Nil(t, Store{Kind: "memory", HistoryLimit: 100}.validate())
	assert.Nil(t, Store{Kind: "redis", Addr: Addr{Host: "localhost", Port: 1111}, Password: "password"}.validate())
	assert.Nil(t, Store{Kind: "sqlite", Path: ":memory:"}.validate())

	assert.NotNil(t, Store{Kind: "redis"}.validate())
	assert.NotNil(t, Store{Kind: "redis", Addr: Addr{Host: "localhost"}}.validate())
	assert.NotNil(t, Store{Kind: "sqlite"}.validate())
	assert.NotNil(t, Store{Kind: "influxdb"}.validate())
	assert.NotNil(t, Store{HistoryLimit: -1}.validate())
}

func TestControllerConfig(t *testing.T) {
	assert.Nil(t, Controller{}.validate())
	assert.Nil(t, Controller{Transport: TransportWS}.validate())

	c := Controller{
		Transport:        TransportNATS,
		Addr:             "nats://localhost:4222",
		TelemetrySubject: "farm.sensor",
		CommandSubject:   "farm.crop",
	}
	assert.Nil(t, c.validate())

	c.QoS = 3
	assert.NotNil(t, c.validate())

	assert.NotNil(t, Controller{Transport: "serial"}.validate())
	assert.NotNil(t, Controller{Transport: TransportMQTT}.validate())
	assert.NotNil(t, Controller{Transport: TransportMQTT, Addr: "tcp://localhost:1883"}.validate())
}

func TestAdviceConfig(t *testing.T) {
	assert.Nil(t, Advice{}.validate())
	assert.Nil(t, Advice{Endpoint: "https://api.openai.com/v1/chat/completions", Timeout: time.Second}.validate())
	assert.NotNil(t, Advice{Endpoint: "not a url"}.validate())
	assert.NotNil(t, Advice{Endpoint: "https://api.openai.com/v1/chat/completions"}.validate())
}

func TestMeshAndTraceConfig(t *testing.T) {
	assert.Nil(t, Mesh{}.validate())
	assert.Nil(t, Mesh{Name: "farmms", TTL: 4 * time.Second}.validate())
	assert.NotNil(t, Mesh{Name: "farmms"}.validate())

	assert.Nil(t, TraceAgent{}.validate())
	assert.Nil(t, TraceAgent{Addr: Addr{Host: "localhost", Port: 6831}}.validate())
	assert.NotNil(t, TraceAgent{Addr: Addr{Host: "localhost"}}.validate())
	assert.NotNil(t, TraceAgent{Addr: Addr{Host: "localhost", Port: 6831}, SampleRate: 1.5}.validate())
	assert.Equal(t, "localhost:6831", Addr{Host: "localhost", Port: 6831}.String())
}

func TestDurationEnv(t *testing.T) {
	defer os.Clearenv()
	require.Nil(t, os.Setenv("D", "1m"))
	assert.Equal(t, time.Minute, durationEnv("D"))
	require.Nil(t, os.Setenv("D", "1500"))
	assert.Equal(t, 1500*time.Millisecond, durationEnv("D"))
	require.Nil(t, os.Setenv("D", "soon"))
	assert.Equal(t, time.Duration(0), durationEnv("D"))
	require.Nil(t, os.Setenv("U", "-4"))
	assert.Equal(t, uint64(0), uintEnv("U"))
}
