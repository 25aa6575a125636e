package svc

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/model"
	"github.com/kostiamol/farmms/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	n int32
}

func (c *countingCloser) Close() error {
	atomic.AddInt32(&c.n, 1)
	return nil
}

func newTestHub(queueSize int) (*Registry, *Hub) {
	r := NewRegistry(&RegistryCfg{Log: log.NewNop(), QueueSize: queueSize})
	return r, NewHub(&HubCfg{Log: log.NewNop(), Registry: r})
}

func TestPublishReachesEveryRegisteredConnection(t *testing.T) {
	r, h := newTestHub(8)

	const k = 5
	peers := make([]*Peer, 0, k)
	for i := 0; i < k; i++ {
		peers = append(peers, r.Register("test", nil))
	}

	n := h.Publish(proto.SensorData{Temperature: 21})
	assert.Equal(t, k, n)
	for _, p := range peers {
		assert.Equal(t, 1, p.queue.len())
		assert.Equal(t, StateOpen, p.State())
	}
}

func TestUnregisteredConnectionGetsNothing(t *testing.T) {
	r, h := newTestHub(8)
	a := r.Register("a", nil)
	closer := &countingCloser{}
	b := r.Register("b", closer)

	assert.True(t, r.Unregister(b.ID))
	assert.False(t, r.Unregister(b.ID))
	assert.Equal(t, int32(1), atomic.LoadInt32(&closer.n))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, 1, h.Publish(proto.CropData{}))
	assert.Equal(t, 1, a.queue.len())
	assert.Equal(t, 0, b.queue.len())
	assert.NotNil(t, r.Send(b.ID, proto.GetAllCropData{}))
}

func TestCriticalOverflowClosesOnlyThatConnection(t *testing.T) {
	r, h := newTestHub(2)
	slow := r.Register("slow", &countingCloser{})
	fast := r.Register("fast", nil)

	require.Nil(t, r.Send(slow.ID, proto.AllCropData{}))
	require.Nil(t, r.Send(slow.ID, proto.AllCropData{}))

	n := h.Publish(proto.AllCropData{Presets: []model.Preset{{Name: "Tomato"}}})
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.Len())
	_, ok := r.Get(slow.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, fast.queue.len())
}

func TestSensorOverflowKeepsConnection(t *testing.T) {
	r, h := newTestHub(2)
	p := r.Register("p", nil)

	for i := 0; i < 10; i++ {
		h.Publish(proto.SensorData{Temperature: float64(i)})
	}
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 2, p.queue.len())

	f, ok := p.queue.next()
	require.True(t, ok)
	m, err := proto.Decode(f.data)
	require.Nil(t, err)
	assert.Equal(t, 8.0, m.(proto.SensorData).Temperature)
}

func TestConcurrentRegisterAndPublish(t *testing.T) {
	r, h := newTestHub(64)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p := r.Register("c", nil)
			r.Unregister(p.ID)
			r.Unregister(p.ID)
		}()
		go func() {
			defer wg.Done()
			h.Publish(proto.SensorData{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}

func TestDispatcherRunsEverySubscriber(t *testing.T) {
	d := NewDispatcher()
	var calls []string
	d.Subscribe(proto.TypeGetAllCropData, func(_ context.Context, _ ConnID, _ proto.Message) {
		calls = append(calls, "first")
	})
	d.Subscribe(proto.TypeGetAllCropData, func(_ context.Context, _ ConnID, _ proto.Message) {
		calls = append(calls, "second")
	})

	assert.Equal(t, 2, d.Dispatch(context.Background(), "c", proto.GetAllCropData{}))
	assert.Equal(t, 0, d.Dispatch(context.Background(), "c", proto.AllCropData{}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestZeroQueueSizeFallsBackToDefault(t *testing.T) {
	r, h := newTestHub(0)
	p := r.Register("viewer", nil)

	for i := 0; i < DefaultQueueSize; i++ {
		require.Equal(t, 1, h.Publish(proto.AllCropData{}))
	}
	assert.Equal(t, StateOpen, p.State())
	assert.Equal(t, DefaultQueueSize, p.queue.len())
}
