package svc

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Ctrl contains StopChan that allows to terminate all the services that listen the channel.
type Ctrl struct {
	StopChan chan struct{}
	once     *sync.Once
}

// NewCtrl returns a Ctrl with an open StopChan.
func NewCtrl() Ctrl {
	return Ctrl{StopChan: make(chan struct{}), once: &sync.Once{}}
}

// Wait blocks until an interrupt arrives or StopChan is closed, then pauses for t so the services
// can shut down gracefully.
func (c *Ctrl) Wait(t time.Duration) {
	inter := make(chan os.Signal, 1)
	signal.Notify(inter, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(inter)

	select {
	case <-inter:
		c.Terminate()
	case <-c.StopChan:
	}

	<-time.NewTimer(t).C
}

// Terminate closes StopChan to signal all the services to shutdown. It is safe to call more than once.
func (c *Ctrl) Terminate() {
	if c.once != nil {
		c.once.Do(func() { close(c.StopChan) })
		return
	}
	select {
	case <-c.StopChan:
	default:
		close(c.StopChan)
	}
}
