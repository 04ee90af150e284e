package telemetry

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/worklog-tools/jwl/internal/jira"
)

const (
	httpScopeName   = "github.com/worklog-tools/jwl/jira"
	updateScopeName = "github.com/worklog-tools/jwl/update"
)

// instruments are the counters shared by the decorators in this package.
type instruments struct {
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider, scope, prefix string) instruments {
	m := mp.Meter(scope)
	ops, _ := m.Int64Counter(prefix+".operations",
		metric.WithDescription("Total operations executed"),
	)
	dur, _ := m.Float64Histogram(prefix+".operation.duration",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter(prefix+".errors",
		metric.WithDescription("Total failed operations"),
	)
	return instruments{tracer: tp.Tracer(scope), ops: ops, dur: dur, errs: errs}
}

// op starts a span and counts the named operation.
func (in instruments) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	ctx, span := in.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	in.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (in instruments) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	in.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		in.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// Transport wraps an http.RoundTripper with a span and metrics per request.
type Transport struct {
	inner http.RoundTripper
	in    instruments
}

// WrapTransport returns rt decorated with OTel instrumentation. When
// telemetry is disabled, rt is returned as-is.
func WrapTransport(rt http.RoundTripper) http.RoundTripper {
	if !Enabled() {
		return rt
	}
	return NewTransport(rt, otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewTransport instruments rt with explicit providers.
func NewTransport(rt http.RoundTripper, tp trace.TracerProvider, mp metric.MeterProvider) *Transport {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &Transport{inner: rt, in: newInstruments(tp, mp, httpScopeName, "jwl.jira.http")}
}

// RoundTrip implements http.RoundTripper. Non-2xx responses are recorded as
// errors on the span; they are still returned to the caller unchanged.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URL.Path),
	}
	ctx, span, start := t.in.op(req.Context(), "jira "+req.Method, attrs...)
	resp, err := t.inner.RoundTrip(req.WithContext(ctx))
	if err == nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode >= 400 {
			err = &jira.TransportError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode}
		}
	}
	t.in.done(ctx, span, start, err, attrs...)
	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// Dispatcher wraps a jira.Dispatcher with a span and metrics per update.
type Dispatcher struct {
	inner jira.Dispatcher
	in    instruments
}

// WrapDispatcher returns d decorated with OTel instrumentation. When
// telemetry is disabled, d is returned as-is.
func WrapDispatcher(d jira.Dispatcher) jira.Dispatcher {
	if !Enabled() {
		return d
	}
	return NewDispatcher(d, otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewDispatcher instruments d with explicit providers.
func NewDispatcher(d jira.Dispatcher, tp trace.TracerProvider, mp metric.MeterProvider) *Dispatcher {
	return &Dispatcher{inner: d, in: newInstruments(tp, mp, updateScopeName, "jwl.worklog.update")}
}

// UpdateWorklog implements jira.Dispatcher.
func (d *Dispatcher) UpdateWorklog(ctx context.Context, issueKey, worklogID string, upd jira.Update) (*jira.Entry, error) {
	attrs := []attribute.KeyValue{
		attribute.String("jwl.issue.key", issueKey),
		attribute.StringSlice("jwl.update.fields", upd.Fields()),
	}
	ctx, span, start := d.in.op(ctx, "worklog.update", attrs...)
	span.SetAttributes(attribute.String("jwl.worklog.id", worklogID))
	e, err := d.inner.UpdateWorklog(ctx, issueKey, worklogID, upd)
	d.in.done(ctx, span, start, err, attrs...)
	return e, err
}
