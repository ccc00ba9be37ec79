package monitoring

import (
	"sync"
	"time"

	"github.com/tr1v3r/pkg/log"
)

// Metrics tracks basic control point metrics
type Metrics struct {
	mu sync.RWMutex

	// HTTP metrics
	HTTPRequestsTotal    int64
	HTTPRequestsByMethod map[string]int64
	HTTPRequestDuration  time.Duration

	// Discovery metrics
	AdvertisementErrorsTotal int64
	DescriptionFetchesTotal  int64
	DescriptionErrorsTotal   int64
	DevicesAvailableTotal    int64
	DevicesGoneTotal         int64

	// UPnP metrics
	UPnPActionsTotal     int64
	UPnPErrorsTotal      int64
	TransportErrorsTotal int64

	startTime time.Time
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HTTPRequestsByMethod: make(map[string]int64),
			startTime:            time.Now(),
		}
	})
	return globalMetrics
}

// RecordHTTPRequest records an outgoing HTTP request
func (m *Metrics) RecordHTTPRequest(method string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HTTPRequestsTotal++
	m.HTTPRequestsByMethod[method]++
	m.HTTPRequestDuration += duration
}

// RecordAdvertisementError records an SSDP message that failed to parse
func (m *Metrics) RecordAdvertisementError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AdvertisementErrorsTotal++
}

// RecordDescriptionFetch records a device description fetch and its outcome
func (m *Metrics) RecordDescriptionFetch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DescriptionFetchesTotal++
	if err != nil {
		m.DescriptionErrorsTotal++
	}
}

func (m *Metrics) RecordDeviceAvailable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DevicesAvailableTotal++
}

func (m *Metrics) RecordDeviceGone() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DevicesGoneTotal++
}

// RecordUPnPAction records a UPnP action
func (m *Metrics) RecordUPnPAction() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UPnPActionsTotal++
}

// RecordUPnPError records a UPnP fault returned by a device
func (m *Metrics) RecordUPnPError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UPnPErrorsTotal++
}

// RecordTransportError records a failed SOAP round trip
func (m *Metrics) RecordTransportError() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TransportErrorsTotal++
}

// GetUptime returns the application uptime
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.startTime)
}

// LogMetrics logs current metrics
func (m *Metrics) LogMetrics() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log.Info("Application metrics uptime=%s http_requests_total=%d description_fetches_total=%d description_errors_total=%d advertisement_errors_total=%d devices_available_total=%d devices_gone_total=%d upnp_actions_total=%d upnp_errors_total=%d transport_errors_total=%d",
		m.GetUptime().String(),
		m.HTTPRequestsTotal,
		m.DescriptionFetchesTotal,
		m.DescriptionErrorsTotal,
		m.AdvertisementErrorsTotal,
		m.DevicesAvailableTotal,
		m.DevicesGoneTotal,
		m.UPnPActionsTotal,
		m.UPnPErrorsTotal,
		m.TransportErrorsTotal)
}
