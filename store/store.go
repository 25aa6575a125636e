// Package store selects and opens the data store backing the reading history and the presets.
package store

import (
	"context"
	"time"

	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/store/memory"
	"github.com/kostiamol/farmms/store/redis"
	"github.com/kostiamol/farmms/store/sqlite"
	"github.com/kostiamol/farmms/svc"
	"github.com/pkg/errors"
)

// Store kinds.
const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindSQLite = "sqlite"
)

type (
	// Checker is implemented by stores able to report their health.
	Checker interface {
		Check() (bool, error)
	}

	// Store is a data store able to report its health.
	Store interface {
		svc.Storer
		Checker
	}

	// Cfg is used to initialize a store.
	Cfg struct {
		Kind             string
		Addr             string
		Password         string
		MaxIdlePoolConns int
		IdleTimeout      time.Duration
		Retry            time.Duration
		Path             string
		Limit            int
		Log              log.Logger
	}
)

// New opens the store of the configured kind. A redis store is ready once Redis answers or ctx is done.
func New(ctx context.Context, c *Cfg) (Store, error) {
	switch c.Kind {
	case KindMemory, "":
		return memory.New(c.Limit), nil
	case KindRedis:
		r := redis.New(&redis.Cfg{
			Addr:             c.Addr,
			Password:         c.Password,
			MaxIdlePoolConns: c.MaxIdlePoolConns,
			IdleTimeout:      c.IdleTimeout,
			Retry:            c.Retry,
			Limit:            c.Limit,
			Log:              c.Log,
		})
		if err := r.Init(ctx); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	case KindSQLite:
		return sqlite.New(&sqlite.Cfg{Path: c.Path, Limit: c.Limit, Log: c.Log})
	default:
		return nil, errors.Errorf("store: unknown kind %q", c.Kind)
	}
}
