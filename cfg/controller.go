package cfg

import "fmt"

// Controller transports.
const (
	TransportWS   = "ws"
	TransportNATS = "nats"
	TransportMQTT = "mqtt"
)

// Controller holds the controller link configuration. With the ws transport the controller
// connects to the websocket endpoint like any viewer and no other field is used.
type Controller struct {
	Transport        string
	Addr             string
	TelemetrySubject string
	CommandSubject   string
	ClientID         string
	Username         string
	Password         string
	QoS              byte
	CommandBuffer    int
}

func (c Controller) validate() error {
	switch c.Transport {
	case "", TransportWS:
		return nil
	case TransportNATS, TransportMQTT:
	default:
		return fmt.Errorf("unknown controller transport [%s]", c.Transport)
	}
	if c.Addr == "" {
		return fmt.Errorf("controller addr env var is missing")
	}
	if c.TelemetrySubject == "" {
		return fmt.Errorf("controller telemetry subject env var is missing")
	}
	if c.CommandSubject == "" {
		return fmt.Errorf("controller command subject env var is missing")
	}
	if c.QoS > 2 {
		return fmt.Errorf("controller qos must be 0, 1 or 2")
	}
	return nil
}
