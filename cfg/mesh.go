package cfg

import (
	"fmt"
	"time"
)

// Mesh holds Consul registration configuration. Registration is off when Name is empty.
type Mesh struct {
	Name string
	TTL  time.Duration
}

// Enabled reports whether the service registers in Consul.
func (m Mesh) Enabled() bool {
	return m.Name != ""
}

func (m Mesh) validate() error {
	if m.Name != "" && m.TTL <= 0 {
		return fmt.Errorf("mesh ttl env var is missing")
	}
	return nil
}
