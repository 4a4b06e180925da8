package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// UpstreamMetrics records the health of the treasury webservice as seen by
// the proxy: call volume and latency, fallbacks taken, records that had to
// be dropped or reshaped, and login outcomes.
type UpstreamMetrics struct {
	calls     *Counter
	duration  *Histogram
	fallbacks *Counter
	defects   *Counter
	dropped   *Counter
	logins    *Counter
}

// NewUpstreamMetrics creates the upstream metric instruments on meter.
func NewUpstreamMetrics(meter metric.Meter) (*UpstreamMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   UpstreamMetrics
		err error
	)
	if m.calls, err = NewCounter(meter, "upstream_calls_total", "Calls made to the upstream webservice", "{call}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "upstream_call_duration_seconds",
		Description: "Latency of upstream webservice calls",
		Unit:        "s",
		Boundaries:  UpstreamDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.fallbacks, err = NewCounter(meter, "upstream_fallbacks_total", "Optimized endpoints that were missing and replaced by a general endpoint", "{fallback}"); err != nil {
		return nil, err
	}
	if m.defects, err = NewCounter(meter, "upstream_contract_defects_total", "Responses that did not match the expected shape", "{response}"); err != nil {
		return nil, err
	}
	if m.dropped, err = NewCounter(meter, "upstream_records_dropped_total", "List elements that were not valid records", "{record}"); err != nil {
		return nil, err
	}
	if m.logins, err = NewCounter(meter, "session_logins_total", "Login attempts by outcome", "{login}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordCall records one upstream call. status is 0 when no response arrived.
func (m *UpstreamMetrics) RecordCall(ctx context.Context, method, endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrMethod.String(method),
		AttrEndpoint.String(endpoint),
		AttrStatusCode.String(statusLabel(status)),
	}
	m.calls.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, d, attrs...)
}

// RecordFallback records that endpoint was missing and fallback served instead.
func (m *UpstreamMetrics) RecordFallback(ctx context.Context, endpoint, fallback string) {
	if m == nil {
		return
	}
	m.fallbacks.Inc(ctx, AttrEndpoint.String(endpoint), AttrFallback.String(fallback))
}

// RecordContractDefect records a response whose shape had to be repaired.
func (m *UpstreamMetrics) RecordContractDefect(ctx context.Context, endpoint, defect string) {
	if m == nil {
		return
	}
	m.defects.Inc(ctx, AttrEndpoint.String(endpoint), AttrDefect.String(defect))
}

// RecordDropped records list elements discarded during normalization.
func (m *UpstreamMetrics) RecordDropped(ctx context.Context, endpoint string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(ctx, int64(n), AttrEndpoint.String(endpoint))
}

// RecordLogin records a login attempt outcome (success, rejected, unavailable).
func (m *UpstreamMetrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Inc(ctx, AttrOutcome.String(outcome))
}

func statusLabel(status int) string {
	if status == 0 {
		return "none"
	}
	return strconv.Itoa(status)
}
