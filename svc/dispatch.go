package svc

import (
	"context"
	"sync"

	"github.com/kostiamol/farmms/proto"
)

type (
	// Handler processes one decoded message received from a connection.
	Handler func(ctx context.Context, from ConnID, m proto.Message)

	// Dispatcher routes decoded messages to the handlers subscribed to their type. Several
	// handlers may subscribe to the same type; they run in subscription order.
	Dispatcher struct {
		mu   sync.RWMutex
		subs map[proto.Type][]Handler
	}
)

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[proto.Type][]Handler)}
}

// Subscribe adds h to the handlers of t.
func (d *Dispatcher) Subscribe(t proto.Type, h Handler) {
	d.mu.Lock()
	d.subs[t] = append(d.subs[t], h)
	d.mu.Unlock()
}

// Dispatch runs every handler subscribed to the type of m and returns how many ran.
func (d *Dispatcher) Dispatch(ctx context.Context, from ConnID, m proto.Message) int {
	d.mu.RLock()
	hs := d.subs[m.Type()]
	d.mu.RUnlock()

	for _, h := range hs {
		h(ctx, from, m)
	}
	return len(hs)
}
