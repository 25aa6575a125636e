package svc

import (
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/metric"
	"github.com/kostiamol/farmms/proto"
)

type (
	// HubCfg is used to initialize an instance of Hub.
	HubCfg struct {
		Log      log.Logger
		Metric   *metric.Metric
		Registry *Registry
	}

	// Hub fans a message out to every registered connection. It only enqueues.
	Hub struct {
		log      log.Logger
		metric   *metric.Metric
		registry *Registry
	}
)

// NewHub creates and initializes a new instance of Hub.
func NewHub(c *HubCfg) *Hub {
	l := c.Log
	if l == nil {
		l = log.NewNop()
	}
	return &Hub{
		log:      l.With("component", "hub"),
		metric:   c.Metric,
		registry: c.Registry,
	}
}

// Publish encodes m once and enqueues it to every registered connection. It returns the number
// of connections the message was queued to.
func (h *Hub) Publish(m proto.Message) int {
	data, err := proto.Encode(m)
	if err != nil {
		h.log.Errorf("func Publish: %s", err)
		return 0
	}
	f := frame{msgType: m.Type(), data: data, critical: proto.Critical(m)}

	n := 0
	h.registry.ForEach(func(p *Peer) {
		if ok, _ := h.registry.enqueue(p, f); ok {
			n++
		}
	})
	h.metric.Delivered(string(m.Type()), n)
	return n
}
