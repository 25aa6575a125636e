package cfg

import (
	"fmt"
	"net/url"
	"time"
)

// Advice holds the crop advice endpoint configuration. The endpoint is disabled when Endpoint is
// empty.
type Advice struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	RetryMax int
}

// Enabled reports whether an advice endpoint is configured.
func (a Advice) Enabled() bool {
	return a.Endpoint != ""
}

func (a Advice) validate() error {
	if a.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(a.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("advice endpoint [%s] is not a valid url", a.Endpoint)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("advice timeout env var is missing")
	}
	return nil
}
