package event

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/proto"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

type (
	// MQTTCfg is used to initialize an instance of MQTT link.
	MQTTCfg struct {
		BrokerURL      string
		ClientID       string
		Username       string
		Password       string
		TelemetryTopic string
		CommandTopic   string
		QoS            byte
		ConnectTimeout time.Duration
		Log            log.Logger
	}

	// MQTT is a controller link over an MQTT broker.
	MQTT struct {
		client         mqtt.Client
		telemetryTopic string
		commandTopic   string
		qos            byte
		timeout        time.Duration
		log            log.Logger

		mu      sync.Mutex
		handler func(proto.SensorData)
	}
)

// NewMQTT creates a new instance of MQTT link. The client reconnects on its own once connected
// and renews the telemetry subscription after every reconnect, since sessions start clean.
func NewMQTT(c *MQTTCfg) *MQTT {
	clientID := c.ClientID
	if clientID == "" {
		clientID = "farmms-" + uuid.NewV4().String()
	}
	timeout := c.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	l := c.Log.With("component", "link", "type", "mqtt")
	opts := mqtt.NewClientOptions().AddBroker(c.BrokerURL)
	opts.SetClientID(clientID)
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		l.With("event", log.EventLinkInit).Errorf("connection lost: %s", err)
	})

	m := &MQTT{
		telemetryTopic: c.TelemetryTopic,
		commandTopic:   c.CommandTopic,
		qos:            c.QoS,
		timeout:        timeout,
		log:            l,
	}
	opts.SetOnConnectHandler(m.onConnect)
	m.client = mqtt.NewClient(opts)
	return m
}

// Listen subscribes to the telemetry topic and delivers every valid push to h until ctx is done.
func (m *MQTT) Listen(ctx context.Context, h func(proto.SensorData)) error {
	m.setHandler(h)
	defer m.setHandler(nil)

	if m.client.IsConnected() {
		if err := wait(m.subscribe(m.client, h), m.timeout); err != nil {
			return errors.Wrap(err, "link: Listen(): Subscribe() failed")
		}
		m.log.With("event", log.EventLinkInit).Infof("subscribed to [%s]", m.telemetryTopic)
	} else if err := m.connect(); err != nil {
		return err
	}

	<-ctx.Done()
	if err := wait(m.client.Unsubscribe(m.telemetryTopic), m.timeout); err != nil {
		m.log.Errorf("func Listen: Unsubscribe() failed: %s", err)
	}
	return nil
}

// ApplyPreset publishes the active preset to the command topic as a retained message so a
// reconnecting controller gets the latest one.
func (m *MQTT) ApplyPreset(p *model.Preset) error {
	data, err := encodeCommand(p)
	if err != nil {
		return errors.Wrap(err, "link: ApplyPreset()")
	}
	if err := m.connect(); err != nil {
		return err
	}
	if err := wait(m.client.Publish(m.commandTopic, m.qos, true, data), m.timeout); err != nil {
		return errors.Wrap(err, "link: ApplyPreset(): Publish() failed")
	}
	m.log.With("event", log.EventPresetSelected).Infof("command sent to [%s]", m.commandTopic)
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}

// onConnect runs on the first connect and on every reconnect.
func (m *MQTT) onConnect(c mqtt.Client) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return
	}

	token := m.subscribe(c, h)
	go func() {
		if err := wait(token, m.timeout); err != nil {
			m.log.With("event", log.EventLinkInit).Errorf("func onConnect: Subscribe() failed: %s", err)
			return
		}
		m.log.With("event", log.EventLinkInit).Infof("subscribed to [%s]", m.telemetryTopic)
	}()
}

func (m *MQTT) subscribe(c mqtt.Client, h func(proto.SensorData)) mqtt.Token {
	return c.Subscribe(m.telemetryTopic, m.qos, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := decodeTelemetry(msg.Payload())
		if err != nil {
			m.log.With("event", log.EventMsgMalformed).Warnf("func Listen: %s", err)
			return
		}
		h(s)
	})
}

func (m *MQTT) setHandler(h func(proto.SensorData)) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

func (m *MQTT) connect() error {
	if m.client.IsConnected() {
		return nil
	}
	if err := wait(m.client.Connect(), m.timeout); err != nil {
		return errors.Wrap(err, "link: connect()")
	}
	return nil
}

func wait(t mqtt.Token, timeout time.Duration) error {
	if !t.WaitTimeout(timeout) {
		return errors.New("timed out")
	}
	return t.Error()
}
