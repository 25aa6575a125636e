package api

import (
	"net/http"
	"time"

	"github.com/kostiamol/farmms/log"
	"github.com/kostiamol/farmms/trace"
)

func (a *api) registerRoute(method, path string, handler http.HandlerFunc,
	middlewares ...func(next http.HandlerFunc, name string, l log.Logger) http.HandlerFunc) {
	for _, mw := range middlewares {
		handler = mw(handler, path, a.log)
	}
	a.router.Handle(path, handler).Methods(method)
}

func requestLogger(next http.HandlerFunc, name string, l log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		l.With("method", r.Method, "uri", r.RequestURI, "name", name, "duration", time.Since(start)).Info()
	}
}

func traceSpan(next http.HandlerFunc, name string, _ log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := trace.SpanFromReqAPI(r, name)
		defer span.End()
		next(w, r.WithContext(ctx))
	}
}

func (a *api) recoverer(next http.HandlerFunc, name string, l log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				l.With("event", log.EventPanic, "name", name).Errorf("func recoverer: %s", rec)
				a.metric.ErrorCounter(log.EventPanic)
				respError(w, l, newServiceError())
			}
		}()
		next(w, r)
	}
}
