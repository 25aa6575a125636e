package svc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/metric"
)

type (
	// StreamServiceCfg is used to initialize an instance of streamService.
	StreamServiceCfg struct {
		Log       log.Logger
		Ctrl      Ctrl
		Metric    *metric.Metric
		Engine    *Engine
		Registry  *Registry
		PortWS    uint64
		ReadLimit int64
		PongWait  time.Duration
		WriteWait time.Duration
	}

	// streamService serves the websocket endpoint shared by viewers and the controller. Every
	// connection gets one read goroutine and one write goroutine.
	streamService struct {
		log        log.Logger
		ctrl       Ctrl
		metric     *metric.Metric
		engine     *Engine
		registry   *Registry
		portWS     uint64
		readLimit  int64
		pongWait   time.Duration
		pingPeriod time.Duration
		writeWait  time.Duration
		upgrader   websocket.Upgrader
		ctx        context.Context
		cancel     context.CancelFunc
		srv        *http.Server
	}
)

// NewStreamService creates and initializes a new instance of streamService service.
func NewStreamService(c *StreamServiceCfg) *streamService { // nolint
	ctx, cancel := context.WithCancel(context.Background())
	s := &streamService{
		log:        c.Log.With("component", "stream"),
		ctrl:       c.Ctrl,
		metric:     c.Metric,
		engine:     c.Engine,
		registry:   c.Registry,
		portWS:     c.PortWS,
		readLimit:  c.ReadLimit,
		pongWait:   c.PongWait,
		pingPeriod: c.PongWait * 9 / 10,
		writeWait:  c.WriteWait,
		ctx:        ctx,
		cancel:     cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if s.readLimit <= 0 {
		s.readLimit = 1 << 16
	}
	if s.pongWait <= 0 {
		s.pongWait = 60 * time.Second
		s.pingPeriod = s.pongWait * 9 / 10
	}
	if s.writeWait <= 0 {
		s.writeWait = 10 * time.Second
		if s.writeWait >= s.pongWait {
			s.writeWait = s.pongWait / 2
		}
	}
	return s
}

// Run launches the service by running goroutines for listening the service termination and
// serving websocket connections.
func (s *streamService) Run() {
	s.log.With("event", log.EventComponentStarted).
		Infof("is running on websocket port [%d]", s.portWS)

	defer func() {
		if r := recover(); r != nil {
			s.log.With("event", log.EventPanic).Errorf("func Run: %s", r)
			s.metric.ErrorCounter(log.EventPanic)
			s.terminate()
		}
	}()

	go s.listenTermination()

	s.srv = &http.Server{
		Handler: s.Handler(),
		Addr:    fmt.Sprintf(":%d", s.portWS),
	}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Errorf("func ListenAndServe: %s", err)
		s.terminate()
	}
}

// Handler returns the router serving the websocket endpoints.
func (s *streamService) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.addConnHandler)
	r.HandleFunc("/ws", s.addConnHandler)
	return r
}

func (s *streamService) listenTermination() {
	<-s.ctrl.StopChan
	s.terminate()
}

func (s *streamService) terminate() {
	s.cancel()
	if s.srv != nil {
		_ = s.srv.Close()
	}
	s.registry.ForEach(func(p *Peer) { s.registry.Unregister(p.ID) })
	s.log.With("event", log.EventComponentShutdown).Info("is down")
	_ = s.log.Flush()
	s.ctrl.Terminate()
}

func (s *streamService) addConnHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("func addConnHandler: Upgrade() failed %s", err)
		return
	}

	p := s.registry.Register(conn.RemoteAddr().String(), conn)
	go s.writePump(p, conn)
	s.engine.Attach(p)
	s.readPump(p, conn)
}

// readPump feeds inbound frames to the engine until the socket fails or stays idle past pongWait.
func (s *streamService) readPump(p *Peer, conn *websocket.Conn) {
	defer s.registry.Unregister(p.ID)

	conn.SetReadLimit(s.readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.With("conn", p.ID).Debugf("func readPump: %s", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
		s.engine.Handle(s.ctx, p.ID, data)
	}
}

// writePump is the only writer of the socket: it drains the outbound queue and keeps the peer alive
// with pings.
func (s *streamService) writePump(p *Peer, conn *websocket.Conn) {
	ticker := time.NewTicker(s.pingPeriod)
	defer func() {
		ticker.Stop()
		s.registry.Unregister(p.ID)
	}()

	for {
		select {
		case <-p.queue.ready:
			for {
				f, ok := p.queue.next()
				if !ok {
					break
				}
				_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
					s.log.With("conn", p.ID).Debugf("func writePump: %s", err)
					return
				}
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.With("conn", p.ID).Debugf("func writePump: ping: %s", err)
				return
			}

		case <-p.queue.done:
			return
		}
	}
}
