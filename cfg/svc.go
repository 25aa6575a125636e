package cfg

import (
	"fmt"
	"time"
)

// Bounds of the per-connection outbound queue. A queue must hold at least the frames a single
// preset change broadcasts back to back.
const (
	DefaultQueueSize = 64
	MinQueueSize     = 8
)

// Service holds basic service configuration.
type Service struct {
	AppID              string
	LogLevel           string
	LogFormat          string
	RetryTimeout       time.Duration
	RetryAttempts      uint32
	PortREST           uint64
	PortWebSocket      uint64
	TerminationTimeout time.Duration
	// QueueSize bounds the outbound queue of every websocket connection.
	QueueSize   int
	TLSHost     string
	TLSCacheDir string
	// Websocket hardening; zero keeps the stream service defaults.
	WSReadLimit int64
	WSPongWait  time.Duration
	WSWriteWait time.Duration
}

func (s Service) validate() error {
	if s.AppID == "" {
		return fmt.Errorf("app id env var is missing")
	}
	if s.LogLevel == "" {
		return fmt.Errorf("log level env var is missing")
	}
	if s.LogFormat != "" && s.LogFormat != "json" && s.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console")
	}
	if s.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts env var is missing")
	}
	if s.RetryTimeout == 0 {
		return fmt.Errorf("retry timeout env var is missing")
	}
	if s.PortREST == 0 {
		return fmt.Errorf("rest port env var is missing")
	}
	if s.PortWebSocket == 0 {
		return fmt.Errorf("websocket port env var is missing")
	}
	if s.PortREST == s.PortWebSocket {
		return fmt.Errorf("rest and websocket ports must differ")
	}
	if s.TerminationTimeout == 0 {
		return fmt.Errorf("termination timeout env var is missing")
	}
	if s.QueueSize < MinQueueSize {
		return fmt.Errorf("queue size must be at least %d", MinQueueSize)
	}
	if s.WSReadLimit < 0 {
		return fmt.Errorf("websocket read limit must not be negative")
	}
	if s.WSPongWait != 0 && s.WSWriteWait >= s.WSPongWait {
		return fmt.Errorf("websocket write wait must be shorter than pong wait")
	}
	if s.TLSHost != "" && s.TLSCacheDir == "" {
		return fmt.Errorf("tls cache dir env var is missing")
	}
	return nil
}
