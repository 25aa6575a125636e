package event

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTelemetry(t *testing.T) {
	s, err := decodeTelemetry([]byte(`{"type":"sensorData","sensorData":{"temperature":21,"humidity":50,
		"soil_moisture":40,"light_sensor_value":300,"solar_sensor_value":2.5,"led_status":false,
		"fan_status":true,"servo_motor_angle":0}}`))
	require.Nil(t, err)
	assert.Equal(t, proto.SensorData{
		Temperature:      21,
		Humidity:         50,
		SoilMoisture:     40,
		LightSensorValue: 300,
		SolarSensorValue: 2.5,
		FanStatus:        true,
	}, s)

	_, err = decodeTelemetry([]byte(`{"type":"getAllCropData"}`))
	assert.NotNil(t, err)
	_, err = decodeTelemetry([]byte(`{"temperature":21}`))
	assert.NotNil(t, err)
}

func TestEncodeCommand(t *testing.T) {
	b, err := encodeCommand(&model.Preset{
		Name:         "Tomato",
		Temp:         model.Range{Min: 18, Max: 27},
		Humidity:     model.Range{Min: 60, Max: 80},
		SoilMoisture: model.Range{Min: 40, Max: 70},
	})
	require.Nil(t, err)
	assert.JSONEq(t, `{"type":"cropData","cropConditions":{"crop_name":"Tomato","temp_max":27,
		"temp_min":18,"humidity_max":80,"humidity_min":60,"soil_moisture_max":70,
		"soil_moisture_min":40}}`, string(b))

	b, err = encodeCommand(nil)
	require.Nil(t, err)
	assert.JSONEq(t, `{"type":"cropData","cropConditions":null}`, string(b))
}

func TestNATSUnreachable(t *testing.T) {
	n := NewNATS(&NATSCfg{
		Addr:           "nats://127.0.0.1:1",
		CommandSubject: "farm.commands",
		RetryTimeout:   time.Millisecond,
		RetryAttempts:  1,
		Log:            log.NewNop(),
	})

	assert.NotNil(t, n.ApplyPreset(nil))
	assert.NotNil(t, n.Listen(context.Background(), func(proto.SensorData) {}))
	assert.Nil(t, n.Close())
}

func TestMQTTUnreachable(t *testing.T) {
	m := NewMQTT(&MQTTCfg{
		BrokerURL:      "tcp://127.0.0.1:1",
		CommandTopic:   "farm/commands",
		ConnectTimeout: 200 * time.Millisecond,
		Log:            log.NewNop(),
	})

	assert.NotNil(t, m.ApplyPreset(nil))
	assert.Nil(t, m.Close())
}

// natsServer speaks just enough of the NATS protocol to accept one client and drop it on demand.
// The listener is closed once the client is in, so reconnects fail.
type natsServer struct {
	ln   net.Listener
	subs chan string
	drop chan struct{}
}

func newNATSServer(t *testing.T) *natsServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	s := &natsServer{ln: ln, subs: make(chan string, 4), drop: make(chan struct{})}
	go s.serve()
	return s
}

func (s *natsServer) url() string {
	return "nats://" + s.ln.Addr().String()
}

func (s *natsServer) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	port := s.ln.Addr().(*net.TCPAddr).Port
	_ = s.ln.Close()
	go func() {
		<-s.drop
		_ = conn.Close()
	}()

	_, _ = fmt.Fprintf(conn, "INFO {\"server_id\":\"farm\",\"version\":\"2.10.0\",\"proto\":1,"+
		"\"host\":\"127.0.0.1\",\"port\":%d,\"max_payload\":1048576,\"headers\":true}\r\n", port)
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		switch {
		case strings.HasPrefix(line, "PING"):
			_, _ = conn.Write([]byte("PONG\r\n"))
		case strings.HasPrefix(line, "SUB "):
			s.subs <- strings.Fields(line)[1]
		}
	}
}

func TestNATSListenReturnsWhenConnectionCloses(t *testing.T) {
	srv := newNATSServer(t)
	n := NewNATS(&NATSCfg{
		Addr:             srv.url(),
		TelemetrySubject: "farm.sensor",
		CommandSubject:   "farm.crop",
		RetryTimeout:     time.Millisecond,
		MaxReconnects:    1,
		ReconnectWait:    10 * time.Millisecond,
		Log:              log.NewNop(),
	})

	done := make(chan error, 1)
	go func() { done <- n.Listen(context.Background(), func(proto.SensorData) {}) }()

	select {
	case subject := <-srv.subs:
		assert.Equal(t, "farm.sensor", subject)
	case <-time.After(2 * time.Second):
		t.Fatal("telemetry subject isn't subscribed")
	}
	close(srv.drop)

	select {
	case err := <-done:
		assert.Equal(t, errConnClosed, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen is still blocked after the connection was closed")
	}
}

type fakeMQTTClient struct {
	mqtt.Client

	mu       sync.Mutex
	topics   []string
	callback mqtt.MessageHandler
}

func (c *fakeMQTTClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.callback = cb
	return &mqtt.DummyToken{}
}

func (c *fakeMQTTClient) subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

type fakeMQTTMessage struct {
	mqtt.Message
	payload []byte
}

func (m fakeMQTTMessage) Payload() []byte { return m.payload }

func TestMQTTResubscribesOnEveryConnect(t *testing.T) {
	m := NewMQTT(&MQTTCfg{
		BrokerURL:      "tcp://127.0.0.1:1",
		TelemetryTopic: "farm/sensor",
		CommandTopic:   "farm/crop",
		Log:            log.NewNop(),
	})
	c := &fakeMQTTClient{}

	m.onConnect(c)
	assert.Empty(t, c.subscribed())

	got := make(chan proto.SensorData, 1)
	m.setHandler(func(s proto.SensorData) { got <- s })
	m.onConnect(c)
	m.onConnect(c)
	assert.Equal(t, []string{"farm/sensor", "farm/sensor"}, c.subscribed())

	c.callback(c, fakeMQTTMessage{payload: []byte(`{"type":"sensorData","sensorData":{"temperature":21,
		"humidity":50,"soil_moisture":40,"light_sensor_value":300,"solar_sensor_value":2.5,
		"led_status":false,"fan_status":true,"servo_motor_angle":0}}`)})
	select {
	case s := <-got:
		assert.Equal(t, 21.0, s.Temperature)
	case <-time.After(time.Second):
		t.Fatal("telemetry isn't delivered")
	}
}
