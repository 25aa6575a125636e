package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/plugin/ochttp/propagation/b3"
	"go.opencensus.io/trace"
)

func TestTransportPropagatesToServerSpan(t *testing.T) {
	trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})

	got := make(chan trace.SpanContext, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get(b3.TraceIDHeader))
		_, span := SpanFromReqAPI(r, "advice")
		got <- span.SpanContext()
		span.End()
	}))
	defer srv.Close()

	ctx, parent := trace.StartSpan(context.Background(), "caller")
	defer parent.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, nil)
	require.Nil(t, err)
	res, err := (&http.Client{Transport: Transport(http.DefaultTransport)}).Do(req)
	require.Nil(t, err)
	_ = res.Body.Close()

	assert.Equal(t, parent.SpanContext().TraceID, (<-got).TraceID)
}

func TestSpanWithoutHeadersStartsNewTrace(t *testing.T) {
	_, span := SpanFromReqAPI(httptest.NewRequest(http.MethodGet, "/health", nil), "health")
	defer span.End()
	assert.NotEqual(t, trace.TraceID{}, span.SpanContext().TraceID)
}

func TestSpanFromMessageIsChildOfCaller(t *testing.T) {
	trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})

	ctx, parent := trace.StartSpan(context.Background(), "conn")
	defer parent.End()

	_, span := SpanFromMessage(ctx, "c-1", "selectCropData")
	defer span.End()
	assert.Equal(t, parent.SpanContext().TraceID, span.SpanContext().TraceID)
	assert.NotEqual(t, parent.SpanContext().SpanID, span.SpanContext().SpanID)
}

func TestSampler(t *testing.T) {
	assert.NotNil(t, sampler(0))
	assert.NotNil(t, sampler(0.25))
	assert.NotNil(t, sampler(1))

	d := sampler(0)(trace.SamplingParameters{})
	assert.True(t, d.Sample)
}
