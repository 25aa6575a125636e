package event

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/proto"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

type (
	// NATSCfg is used to initialize an instance of NATS link.
	NATSCfg struct {
		Addr             string
		TelemetrySubject string
		CommandSubject   string
		RetryTimeout     time.Duration
		RetryAttempts    uint32
		// MaxReconnects and ReconnectWait tune the client reconnect loop; zero keeps the nats.go
		// defaults.
		MaxReconnects    int
		ReconnectWait    time.Duration
		Log              log.Logger
	}

	// NATS is a controller link over a NATS server.
	NATS struct {
		addr             string
		telemetrySubject string
		commandSubject   string
		retryTimeout     time.Duration
		retryAttempts    uint32
		maxReconnects    int
		reconnectWait    time.Duration
		log              log.Logger

		mu     sync.Mutex
		conn   *nats.Conn
		closed chan struct{}
	}
)

var errConnClosed = errors.New("link: connection closed")

// NewNATS creates a new instance of NATS link. The connection is made lazily.
func NewNATS(c *NATSCfg) *NATS {
	return &NATS{
		addr:             c.Addr,
		telemetrySubject: c.TelemetrySubject,
		commandSubject:   c.CommandSubject,
		retryTimeout:     c.RetryTimeout,
		retryAttempts:    c.RetryAttempts,
		maxReconnects:    c.MaxReconnects,
		reconnectWait:    c.ReconnectWait,
		log:              c.Log.With("component", "link", "type", "nats"),
	}
}

// Listen subscribes to the telemetry subject and delivers every valid push to h until ctx is done.
// It returns errConnClosed once the client gives up reconnecting, so the caller can start over.
func (n *NATS) Listen(ctx context.Context, h func(proto.SensorData)) error {
	conn, closed, err := n.connect()
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(n.telemetrySubject, func(m *nats.Msg) {
		s, err := decodeTelemetry(m.Data)
		if err != nil {
			n.log.With("event", log.EventMsgMalformed).Warnf("func Listen: %s", err)
			return
		}
		h(s)
	})
	if err != nil {
		return errors.Wrap(err, "link: Listen(): Subscribe() failed")
	}
	n.log.With("event", log.EventLinkInit).Infof("subscribed to [%s]", n.telemetrySubject)

	select {
	case <-ctx.Done():
	case <-closed:
		n.log.With("event", log.EventLinkInit).Errorf("func Listen: nats connectivity status is CLOSED")
		return errConnClosed
	}
	if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
		n.log.Errorf("func Listen: Unsubscribe() failed: %s", err)
	}
	return nil
}

// ApplyPreset publishes the active preset to the command subject.
func (n *NATS) ApplyPreset(p *model.Preset) error {
	data, err := encodeCommand(p)
	if err != nil {
		return errors.Wrap(err, "link: ApplyPreset()")
	}
	conn, _, err := n.connect()
	if err != nil {
		return err
	}

	msg := nats.NewMsg(n.commandSubject)
	msg.Header.Set("Event-Id", uuid.NewV4().String())
	msg.Data = data
	if err := conn.PublishMsg(msg); err != nil {
		return errors.Wrap(err, "link: ApplyPreset(): PublishMsg() failed")
	}
	n.log.With("event", log.EventPresetSelected).Infof("command sent to [%s]", n.commandSubject)
	return nil
}

// Close drains the connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Drain()
	n.conn = nil
	return err
}

func (n *NATS) connect() (*nats.Conn, <-chan struct{}, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil && !n.conn.IsClosed() {
		return n.conn, n.closed, nil
	}

	var (
		conn         *nats.Conn
		closed       chan struct{}
		err          error
		retryAttempt uint32
	)
	for {
		closed = make(chan struct{})
		conn, err = nats.Connect(n.addr, n.options(closed)...)
		if err != nil && retryAttempt < n.retryAttempts {
			n.log.With("event", log.EventLinkInit).Errorf("func connect: nats connectivity status is DISCONNECTED")
			retryAttempt++
			time.Sleep(jitter(n.retryTimeout))
			continue
		}
		break
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "link: connect()")
	}
	n.conn, n.closed = conn, closed
	return conn, closed, nil
}

// options builds the client options of one connection; closed is closed when the client gives up.
func (n *NATS) options(closed chan struct{}) []nats.Option {
	var once sync.Once
	opts := []nats.Option{
		nats.Name("farmms"),
		nats.ClosedHandler(func(*nats.Conn) { once.Do(func() { close(closed) }) }),
	}
	if n.maxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(n.maxReconnects))
	}
	if n.reconnectWait > 0 {
		opts = append(opts, nats.ReconnectWait(n.reconnectWait))
	}
	return opts
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Millisecond
	}
	return time.Duration(rand.Int63n(int64(d))) + time.Millisecond
}
