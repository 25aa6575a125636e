package cfg

import (
	"fmt"
	"time"
)

// Store holds store configuration.
type Store struct {
	Kind             string
	Addr             Addr
	Password         string
	Path             string
	HistoryLimit     int
	MaxIdlePoolConns int
	IdleTimeout      time.Duration
}

func (s Store) validate() error {
	switch s.Kind {
	case "", "memory":
	case "redis":
		if s.Addr.Host == "" {
			return fmt.Errorf("store host env var is missing")
		}
		if s.Addr.Port == 0 {
			return fmt.Errorf("store port env var is missing")
		}
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("store path env var is missing")
		}
	default:
		return fmt.Errorf("unknown store kind [%s]", s.Kind)
	}
	if s.HistoryLimit < 0 {
		return fmt.Errorf("history limit must not be negative")
	}
	return nil
}
