package cfg

import "fmt"

// TraceAgent holds trace agent configuration. Tracing is off when Host is empty.
type TraceAgent struct {
	Addr       Addr
	SampleRate float64
}

// Enabled reports whether a trace agent is configured.
func (t TraceAgent) Enabled() bool {
	return t.Addr.Host != ""
}

func (t TraceAgent) validate() error {
	if t.Addr.Host != "" && t.Addr.Port == 0 {
		return fmt.Errorf("trace agent addr port env var is missing")
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("trace sample rate must be within [0, 1]")
	}
	return nil
}
