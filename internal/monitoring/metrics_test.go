package monitoring

import (
	"errors"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	m := &Metrics{HTTPRequestsByMethod: make(map[string]int64), startTime: time.Now()}

	m.RecordHTTPRequest("POST", 20*time.Millisecond)
	m.RecordHTTPRequest("GET", 10*time.Millisecond)
	m.RecordHTTPRequest("POST", 5*time.Millisecond)
	m.RecordDescriptionFetch(nil)
	m.RecordDescriptionFetch(errors.New("timeout"))
	m.RecordDeviceAvailable()
	m.RecordDeviceGone()
	m.RecordUPnPAction()
	m.RecordUPnPError()
	m.RecordTransportError()
	m.RecordAdvertisementError()

	if m.HTTPRequestsTotal != 3 || m.HTTPRequestsByMethod["POST"] != 2 {
		t.Errorf("http totals = %d, POST = %d", m.HTTPRequestsTotal, m.HTTPRequestsByMethod["POST"])
	}
	if m.HTTPRequestDuration != 35*time.Millisecond {
		t.Errorf("duration = %s", m.HTTPRequestDuration)
	}
	if m.DescriptionFetchesTotal != 2 || m.DescriptionErrorsTotal != 1 {
		t.Errorf("fetches = %d, errors = %d", m.DescriptionFetchesTotal, m.DescriptionErrorsTotal)
	}
	if m.DevicesAvailableTotal != 1 || m.DevicesGoneTotal != 1 {
		t.Errorf("available = %d, gone = %d", m.DevicesAvailableTotal, m.DevicesGoneTotal)
	}
	if m.UPnPActionsTotal != 1 || m.UPnPErrorsTotal != 1 || m.TransportErrorsTotal != 1 || m.AdvertisementErrorsTotal != 1 {
		t.Errorf("unexpected counters: %+v", m)
	}

	// must not deadlock
	m.LogMetrics()
}

func TestGetMetricsSingleton(t *testing.T) {
	if GetMetrics() != GetMetrics() {
		t.Error("GetMetrics returned different instances")
	}
}
