package svc

import (
	"sync"

	"github.com/kostiamol/farmms/proto"
	"github.com/pkg/errors"
)

var (
	errQueueFull   = errors.New("outbound queue is full of critical messages")
	errQueueClosed = errors.New("outbound queue is closed")
)

type (
	// frame is an encoded message waiting to be written to a connection.
	frame struct {
		msgType  proto.Type
		data     []byte
		critical bool
	}

	pushResult int

	// queue is the bounded ordered outbound queue of one connection. push never blocks.
	queue struct {
		mu     sync.Mutex
		frames []frame
		limit  int
		closed bool
		ready  chan struct{}
		done   chan struct{}
	}
)

const (
	pushed pushResult = iota
	// pushedEvicted means an older non-critical frame was dropped to make room.
	pushedEvicted
	// discarded means the non-critical frame itself was dropped: everything pending is critical.
	discarded
)

func newQueue(limit int) *queue {
	if limit < 1 {
		limit = 1
	}
	return &queue{
		frames: make([]frame, 0, limit),
		limit:  limit,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push appends f. It returns errQueueFull when f is critical and every pending frame is critical.
func (q *queue) push(f frame) (pushResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return discarded, errQueueClosed
	}

	res := pushed
	if len(q.frames) >= q.limit {
		i := q.oldestDroppable()
		switch {
		case i >= 0:
			q.frames = append(q.frames[:i], q.frames[i+1:]...)
			res = pushedEvicted
		case f.critical:
			return discarded, errQueueFull
		default:
			return discarded, nil
		}
	}
	q.frames = append(q.frames, f)

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return res, nil
}

func (q *queue) oldestDroppable() int {
	for i, f := range q.frames {
		if !f.critical {
			return i
		}
	}
	return -1
}

// next pops the head of the queue. It reports false when the queue is empty or closed.
func (q *queue) next() (frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.frames) == 0 {
		return frame{}, false
	}
	f := q.frames[0]
	q.frames[0] = frame{}
	q.frames = q.frames[1:]
	return f, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// close discards pending frames. It is safe to call more than once.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.frames = nil
	close(q.done)
}
