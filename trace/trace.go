// Package trace sets up OpenCensus tracing exported to a Jaeger agent. REST requests and the advice
// client propagate b3 headers; websocket messages get one span each.
package trace

import (
	"context"
	"fmt"
	"net/http"

	"contrib.go.opencensus.io/exporter/jaeger"
	"go.opencensus.io/plugin/ochttp"
	"go.opencensus.io/plugin/ochttp/propagation/b3"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"
)

// Cfg is used to initialize tracing.
type Cfg struct {
	ServiceName   string
	AgentEndpoint string
	// SampleRate is the sampled fraction of traces; values outside (0, 1) sample everything.
	SampleRate float64
}

// Init registers the jaeger exporter and the http views. The returned func flushes buffered spans.
func Init(c *Cfg) (func(), error) {
	exp, err := jaeger.NewExporter(jaeger.Options{
		AgentEndpoint: c.AgentEndpoint,
		Process:       jaeger.Process{ServiceName: c.ServiceName},
	})
	if err != nil {
		return nil, fmt.Errorf("func NewExporter: %s", err)
	}
	views := append(append([]*view.View{}, ochttp.DefaultClientViews...), ochttp.DefaultServerViews...)
	if err := view.Register(views...); err != nil {
		return nil, fmt.Errorf("func Register: %s", err)
	}

	trace.RegisterExporter(exp)
	trace.ApplyConfig(trace.Config{DefaultSampler: sampler(c.SampleRate)})
	return exp.Flush, nil
}

func sampler(rate float64) trace.Sampler {
	if rate > 0 && rate < 1 {
		return trace.ProbabilitySampler(rate)
	}
	return trace.AlwaysSample()
}

// SpanFromReqAPI creates span from request with b3 propagation.
func SpanFromReqAPI(r *http.Request, name string) (context.Context, *trace.Span) {
	name = fmt.Sprintf("api: %s", name)
	f := b3.HTTPFormat{}
	if sc, ok := f.SpanContextFromRequest(r); ok {
		return trace.StartSpanWithRemoteParent(r.Context(), name, sc)
	}
	return trace.StartSpan(r.Context(), name)
}

// SpanFromMessage starts the span covering the handling of one inbound websocket message.
func SpanFromMessage(ctx context.Context, conn, msgType string) (context.Context, *trace.Span) {
	ctx, span := trace.StartSpan(ctx, fmt.Sprintf("ws: %s", msgType))
	span.AddAttributes(
		trace.StringAttribute("conn", conn),
		trace.StringAttribute("type", msgType))
	return ctx, span
}

// Transport wraps base so outgoing requests carry b3 headers and feed the ochttp client views.
func Transport(base http.RoundTripper) http.RoundTripper {
	return &ochttp.Transport{Base: base, Propagation: &b3.HTTPFormat{}}
}
