package svc

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/metric"
	"github.com/kostiamol/farmms/proto"
	uuid "github.com/satori/go.uuid"
)

type (
	// ConnID identifies a registered connection.
	ConnID string

	// ConnState is the lifecycle state of a connection: Connecting -> Open -> Closed.
	ConnState int32

	// Peer is a registered connection together with its outbound queue.
	Peer struct {
		ID     ConnID
		Addr   string
		state  int32
		queue  *queue
		closer io.Closer
	}

	// RegistryCfg is used to initialize an instance of Registry. A zero QueueSize means
	// DefaultQueueSize.
	RegistryCfg struct {
		Log       log.Logger
		Metric    *metric.Metric
		QueueSize int
	}

	// Registry tracks live connections. It is the only place outbound queues are created.
	Registry struct {
		mu        sync.RWMutex
		peers     map[ConnID]*Peer
		queueSize int
		log       log.Logger
		metric    *metric.Metric
	}
)

// DefaultQueueSize is the outbound queue bound used when none is configured.
const DefaultQueueSize = 64

// Connection states.
const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

// NewRegistry creates and initializes a new instance of Registry.
func NewRegistry(c *RegistryCfg) *Registry {
	l := c.Log
	if l == nil {
		l = log.NewNop()
	}
	size := c.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Registry{
		peers:     make(map[ConnID]*Peer),
		queueSize: size,
		log:       l.With("component", "registry"),
		metric:    c.Metric,
	}
}

// State returns the current lifecycle state of the connection.
func (p *Peer) State() ConnState {
	return ConnState(atomic.LoadInt32(&p.state))
}

// Register creates the outbound queue of a new connection and makes it visible to broadcasts.
// closer is invoked once when the connection is unregistered.
func (r *Registry) Register(addr string, closer io.Closer) *Peer {
	p := &Peer{
		ID:     ConnID(uuid.NewV4().String()),
		Addr:   addr,
		state:  int32(StateConnecting),
		queue:  newQueue(r.queueSize),
		closer: closer,
	}

	r.mu.Lock()
	r.peers[p.ID] = p
	atomic.StoreInt32(&p.state, int32(StateOpen))
	r.mu.Unlock()

	r.metric.ConnAdded()
	r.log.With("event", log.EventWSConnAdded, "conn", p.ID).Infof("addr: %s", addr)
	return p
}

// Unregister removes the connection, discards its queue and closes it. It reports whether the
// connection was still registered; repeated calls are no-ops.
func (r *Registry) Unregister(id ConnID) bool {
	r.mu.Lock()
	p, ok := r.peers[id]
	delete(r.peers, id)
	r.mu.Unlock()
	if !ok {
		return false
	}

	atomic.StoreInt32(&p.state, int32(StateClosed))
	p.queue.close()
	if p.closer != nil {
		if err := p.closer.Close(); err != nil {
			r.log.Debugf("func Unregister: %s", err)
		}
	}

	r.metric.ConnRemoved()
	r.log.With("event", log.EventWSConnRemoved, "conn", id).Infof("addr: %s", p.Addr)
	return true
}

// Get returns the registered connection with the given id.
func (r *Registry) Get(id ConnID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// ForEach calls f for every connection registered at the time of the call. f runs without the
// registry lock held.
func (r *Registry) ForEach(f func(p *Peer)) {
	r.mu.RLock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.RUnlock()

	for _, p := range peers {
		f(p)
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Send encodes m and enqueues it to one connection.
func (r *Registry) Send(id ConnID, m proto.Message) error {
	p, ok := r.Get(id)
	if !ok {
		return errQueueClosed
	}
	data, err := proto.Encode(m)
	if err != nil {
		return err
	}
	_, err = r.enqueue(p, frame{msgType: m.Type(), data: data, critical: proto.Critical(m)})
	return err
}

// enqueue applies the overflow policy: a full queue sheds non-critical frames, and a critical frame
// that can't be queued closes that connection only. It reports whether f was queued.
func (r *Registry) enqueue(p *Peer, f frame) (bool, error) {
	res, err := p.queue.push(f)
	switch {
	case err == errQueueFull:
		r.log.With("event", log.EventMsgDropped, "conn", p.ID).
			Warnf("func enqueue: %s: %s", f.msgType, err)
		r.metric.Dropped(string(f.msgType))
		r.Unregister(p.ID)
		return false, err
	case err != nil:
		return false, err
	case res == pushedEvicted:
		r.metric.Dropped(string(proto.TypeSensorData))
	case res == discarded:
		r.metric.Dropped(string(f.msgType))
		return false, nil
	}
	return true, nil
}
