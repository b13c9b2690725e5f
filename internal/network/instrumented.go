package network

import (
	"net/http"
	"time"

	clog "github.com/charmbracelet/log"
)

// Observer receives the outcome of each outbound request. status is 0 when
// the request failed before a response arrived.
type Observer interface {
	ObserveOutbound(method, host string, status int, elapsed time.Duration)
}

// LogObserver logs every outbound request at debug level.
type LogObserver struct {
	Log *clog.Logger
}

func (o LogObserver) ObserveOutbound(method, host string, status int, elapsed time.Duration) {
	o.Log.Debug("request", "method", method, "host", host, "status", status, "elapsed", elapsed)
}

// InstrumentedRoundTripper reports per-request latency to an Observer.
type InstrumentedRoundTripper struct {
	base http.RoundTripper
	obs  Observer
}

func NewInstrumentedRoundTripper(base http.RoundTripper, obs Observer) *InstrumentedRoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &InstrumentedRoundTripper{base: base, obs: obs}
}

func (t *InstrumentedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	t.obs.ObserveOutbound(req.Method, req.URL.Host, status, time.Since(start))
	return resp, err
}
